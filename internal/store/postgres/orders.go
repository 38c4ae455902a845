package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const orderColumns = `id, kind, client_name, created_by, status, created_at, updated_at, accepted_at, completed_at, deadline, observations, items`

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if err := store.ValidateOrderItems(order.Items); err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, store.Wrap(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, order.ID, string(order.Kind), order.ClientName, nullIfEmpty(order.CreatedBy), string(order.Status),
		order.CreatedAt, order.UpdatedAt, nullTime(order.AcceptedAt), nullTime(order.CompletedAt),
		order.Deadline, nullIfEmpty(order.Observations), items)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.Invalid("id", "already exists")
		}
		return nil, mapError(err)
	}
	return &order, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("order", id)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(status), limitOr(limit, 100))
}

func (s *Store) ListOrdersByKind(ctx context.Context, kind domain.OrderKind, statuses []domain.OrderStatus) ([]domain.Order, error) {
	filter := make([]string, 0, len(statuses))
	for _, status := range statuses {
		filter = append(filter, string(status))
	}
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE kind = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at ASC, id ASC
	`, string(kind), filter)
}

func (s *Store) UpdateOrderItems(ctx context.Context, id string, items []domain.OrderItem, at time.Time) (*domain.Order, error) {
	if err := store.ValidateOrderItems(items); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, store.Wrap(err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET items = $2, updated_at = $3
		WHERE id = $1
	`, id, payload, at)
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFound("order", id)
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if err := store.ValidateOrderItems(order.Items); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(order.Items)
	if err != nil {
		return nil, store.Wrap(err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET client_name = $2, deadline = $3, observations = $4, items = $5, updated_at = $6
		WHERE id = $1
	`, order.ID, order.ClientName, order.Deadline, nullIfEmpty(order.Observations), payload, order.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFound("order", order.ID)
	}
	return s.GetOrder(ctx, order.ID)
}

// TransitionOrder moves an order only if it is still in the expected state,
// so a lost race surfaces as an InvalidTransitionError.
func (s *Store) TransitionOrder(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $3::text,
			updated_at = $4::timestamptz,
			accepted_at = CASE WHEN $3::text = 'in_process' THEN $4::timestamptz ELSE accepted_at END,
			completed_at = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE completed_at END
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &store.InvalidTransitionError{Entity: "order", ID: id, From: string(current.Status), To: string(to)}
	}
	return current, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFound("order", id)
	}

	removed, err := deleteNotifications(ctx, tx, store.NotificationFilter{OrderID: id})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return removed, nil
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var createdBy, observations sql.NullString
	var acceptedAt, completedAt sql.NullTime
	var items []byte
	err := row.Scan(&o.ID, &o.Kind, &o.ClientName, &createdBy, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&acceptedAt, &completedAt, &o.Deadline, &observations, &items)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, mapError(err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, &store.StoreError{Message: "unreadable items for order " + o.ID, Err: err}
	}
	o.CreatedBy = createdBy.String
	o.Observations = observations.String
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.Deadline = o.Deadline.UTC()
	o.AcceptedAt = timePtr(acceptedAt)
	o.CompletedAt = timePtr(completedAt)
	return o, nil
}
