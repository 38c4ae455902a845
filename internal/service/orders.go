package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const deadlineLayout = "2006-01-02"

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	req.ClientName = strings.TrimSpace(req.ClientName)
	req.Deadline = strings.TrimSpace(req.Deadline)
	req.Observations = strings.TrimSpace(req.Observations)
	req.Items = normalizeOrderItems(req.Items)
	if err := validateStruct(req); err != nil {
		return domain.OrderResponse{}, err
	}
	if err := store.ValidateOrderItems(req.Items); err != nil {
		return domain.OrderResponse{}, err
	}
	deadline, err := time.Parse(deadlineLayout, req.Deadline)
	if err != nil {
		return domain.OrderResponse{}, store.Invalid("deadline", "must be a date formatted "+deadlineLayout)
	}

	now := s.now()
	created, err := s.repo.CreateOrder(ctx, domain.Order{
		ID:           xid.New("ord"),
		Kind:         domain.OrderKindCustomer,
		ClientName:   req.ClientName,
		CreatedBy:    actor.UserID,
		Status:       domain.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Deadline:     deadline,
		Observations: req.Observations,
		Items:        req.Items,
	})
	if err != nil {
		return domain.OrderResponse{}, err
	}

	affected := domain.Affected{OrderIDs: []string{created.ID}}
	affected.NotificationIDs = s.notifyStaff(ctx, notice{
		kind:    domain.NotificationOrderCreated,
		message: fmt.Sprintf("Nueva orden creada: %s (%d referencias).", created.ClientName, len(created.Items)),
		actorID: actor.UserID,
		orderID: created.ID,
	})
	return domain.OrderResponse{Order: *created, Affected: affected}, nil
}

// UpdateOrder edits a customer order that has not been completed. Stock
// orders are owned by the planner and cannot be edited by hand.
func (s *Service) UpdateOrder(ctx context.Context, id string, req domain.OrderUpdateRequest) (domain.OrderResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.OrderResponse{}, err
	}

	req.ClientName = strings.TrimSpace(req.ClientName)
	req.Deadline = strings.TrimSpace(req.Deadline)
	req.Observations = strings.TrimSpace(req.Observations)
	req.Items = normalizeOrderItems(req.Items)
	if err := validateStruct(req); err != nil {
		return domain.OrderResponse{}, err
	}
	deadline, err := time.Parse(deadlineLayout, req.Deadline)
	if err != nil {
		return domain.OrderResponse{}, store.Invalid("deadline", "must be a date formatted "+deadlineLayout)
	}

	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if existing.Kind == domain.OrderKindSystemReplenishment {
		return domain.OrderResponse{}, store.Invalid("kind", "stock orders are maintained automatically")
	}
	if existing.Status == domain.OrderStatusCompleted {
		return domain.OrderResponse{}, &store.InvalidTransitionError{
			Entity: "order",
			ID:     id,
			From:   string(existing.Status),
			To:     string(existing.Status),
		}
	}

	existing.ClientName = req.ClientName
	existing.Deadline = deadline
	existing.Observations = req.Observations
	existing.Items = req.Items
	existing.UpdatedAt = s.now()
	updated, err := s.repo.UpdateOrder(ctx, *existing)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *updated, Affected: domain.Affected{OrderIDs: []string{id}}}, nil
}

func (s *Service) AcceptOrder(ctx context.Context, id string) (domain.OrderResponse, error) {
	return s.transitionOrder(ctx, id, domain.OrderStatusPending, domain.OrderStatusInProcess, `La orden de %s ha pasado a "En Proceso".`)
}

func (s *Service) CompleteOrder(ctx context.Context, id string) (domain.OrderResponse, error) {
	return s.transitionOrder(ctx, id, domain.OrderStatusInProcess, domain.OrderStatusCompleted, "La orden de %s ha sido completada.")
}

func (s *Service) transitionOrder(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus, format string) (domain.OrderResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order, err := s.repo.TransitionOrder(ctx, id, from, to, s.now())
	if err != nil {
		return domain.OrderResponse{}, err
	}

	affected := domain.Affected{OrderIDs: []string{order.ID}}
	if order.Kind == domain.OrderKindCustomer && order.CreatedBy != actor.UserID {
		affected.NotificationIDs = s.notifyUser(ctx, order.CreatedBy, notice{
			kind:    domain.NotificationOrderStatusChanged,
			message: fmt.Sprintf(format, order.ClientName),
			actorID: actor.UserID,
			orderID: order.ID,
		})
	}
	return domain.OrderResponse{Order: *order, Affected: affected}, nil
}

// DeleteOrder removes an order in any state along with its notifications.
// Orders reserve no stock, so nothing is restored.
func (s *Service) DeleteOrder(ctx context.Context, id string) (domain.Affected, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Affected{}, err
	}
	removed, err := s.repo.DeleteOrder(ctx, id)
	if err != nil {
		return domain.Affected{}, err
	}
	return domain.Affected{OrderIDs: []string{id}, NotificationIDs: removed}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) (domain.OrderListResponse, error) {
	filter := domain.OrderStatus(strings.TrimSpace(status))
	if filter != "" && !filter.Valid() {
		return domain.OrderListResponse{}, store.Invalid("status", "must be pending, in_process or completed")
	}
	orders, err := s.repo.ListOrders(ctx, filter, normalizeLimit(limit, 100))
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

// RunReplenishment recomputes the pending stock order against the acting
// user's size targets.
func (s *Service) RunReplenishment(ctx context.Context) (domain.ReplenishmentResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ReplenishmentResult{}, err
	}
	return s.planner.Plan(ctx, actor.UserID)
}

func normalizeOrderItems(items []domain.OrderItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		item.Reference = domain.NormalizeReference(item.Reference)
		item.Color = domain.NormalizeColor(item.Color)
		item.Observation = strings.TrimSpace(item.Observation)
		sizes := make(map[string]int, len(item.Sizes))
		for size, qty := range item.Sizes {
			size = strings.TrimSpace(size)
			if qty == 0 {
				continue
			}
			sizes[size] += qty
		}
		item.Sizes = sizes
		out = append(out, item)
	}
	return out
}
