package notify

import (
	"context"

	"pearstock/backend/internal/domain"
)

// Publisher pushes persisted notifications to connected clients. Delivery is
// best effort; the stored notification is the source of truth.
type Publisher interface {
	PublishNotifications(ctx context.Context, notifications []domain.Notification) error
	Close() error
}

// Channel is the per-recipient key clients subscribe to.
func Channel(userID string) string {
	return "notifications:user:" + userID
}

type NoopPublisher struct{}

func (NoopPublisher) PublishNotifications(_ context.Context, _ []domain.Notification) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
