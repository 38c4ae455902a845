package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkaGo "github.com/segmentio/kafka-go"

	"pearstock/backend/internal/domain"
)

type Envelope struct {
	Channel      string              `json:"channel"`
	Notification domain.Notification `json:"notification"`
}

type KafkaPublisher struct {
	writer *kafkaGo.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkaGo.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishNotifications writes one message per notification keyed by the
// recipient channel so a recipient's messages stay ordered.
func (p *KafkaPublisher) PublishNotifications(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	messages := make([]kafkaGo.Message, 0, len(notifications))
	for _, n := range notifications {
		msg, err := encode(n)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	return p.writer.WriteMessages(ctx, messages...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(n domain.Notification) (kafkaGo.Message, error) {
	channel := Channel(n.UserID)
	payload, err := json.Marshal(Envelope{Channel: channel, Notification: n})
	if err != nil {
		return kafkaGo.Message{}, fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}
	return kafkaGo.Message{
		Key:   []byte(channel),
		Value: payload,
	}, nil
}
