package service

import (
	"context"
	"log"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/xid"
)

var staffRoles = []string{domain.RoleAdmin, domain.RoleProduction}

type notice struct {
	kind    domain.NotificationType
	message string
	actorID string
	orderID string
	saleID  string
}

// wants applies a recipient's preferences to a notice.
func wants(prefs domain.NotificationPrefs, n notice) bool {
	switch n.kind {
	case domain.NotificationSalePending, domain.NotificationSaleConfirmed:
		if !prefs.ReceiveSaleNotifications {
			return false
		}
	default:
		if !prefs.ReceiveOrderNotifications {
			return false
		}
	}
	return !prefs.Mutes(n.actorID)
}

func (s *Service) notifyStaff(ctx context.Context, n notice) []string {
	users, err := s.repo.ListUsersByRoles(ctx, staffRoles)
	if err != nil {
		log.Printf("[notify] WARN: failed to list recipients type=%s: %v", n.kind, err)
		return nil
	}
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, u.ID)
	}
	return s.deliver(ctx, recipients, n)
}

func (s *Service) notifyUser(ctx context.Context, userID string, n notice) []string {
	if userID == "" {
		return nil
	}
	return s.deliver(ctx, []string{userID}, n)
}

// deliver persists one notification per interested recipient and pushes the
// batch. The triggering write has already committed, so failures here are
// logged rather than returned.
func (s *Service) deliver(ctx context.Context, recipients []string, n notice) []string {
	now := s.now()
	batch := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		prefs, err := s.settings.NotificationPrefs(ctx, userID)
		if err != nil {
			log.Printf("[notify] WARN: failed to read prefs user=%s, using defaults: %v", userID, err)
			prefs = domain.DefaultNotificationPrefs()
		}
		if !wants(prefs, n) {
			continue
		}
		batch = append(batch, domain.Notification{
			ID:        xid.New("ntf"),
			UserID:    userID,
			Message:   n.message,
			Type:      n.kind,
			OrderID:   n.orderID,
			SaleID:    n.saleID,
			CreatedAt: now,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	if err := s.repo.CreateNotifications(ctx, batch); err != nil {
		log.Printf("[notify] WARN: failed to store %d notifications type=%s: %v", len(batch), n.kind, err)
		return nil
	}
	if err := s.publisher.PublishNotifications(ctx, batch); err != nil {
		log.Printf("[notify] WARN: push failed type=%s: %v", n.kind, err)
	}

	ids := make([]string, 0, len(batch))
	for _, item := range batch {
		ids = append(ids, item.ID)
	}
	return ids
}

func (s *Service) ListNotifications(ctx context.Context, limit int) (domain.NotificationListResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.NotificationListResponse{}, err
	}
	items, err := s.repo.ListNotifications(ctx, actor.UserID, normalizeLimit(limit, 50))
	if err != nil {
		return domain.NotificationListResponse{}, err
	}
	return domain.NotificationListResponse{Notifications: items}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	n, err := s.repo.MarkNotificationRead(ctx, id, actor.UserID)
	if err != nil {
		return domain.Notification{}, err
	}
	return *n, nil
}

func (s *Service) DeleteNotification(ctx context.Context, id string) (domain.Affected, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Affected{}, err
	}
	if err := s.repo.DeleteNotification(ctx, id, actor.UserID); err != nil {
		return domain.Affected{}, err
	}
	return domain.Affected{NotificationIDs: []string{id}}, nil
}
