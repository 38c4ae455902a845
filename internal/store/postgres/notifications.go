package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

func (s *Store) CreateNotifications(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, n := range notifications {
		if n.UserID == "" || n.Type == "" {
			return store.Invalid("notification", "user and type required")
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, n := range notifications {
		if n.ID == "" {
			n.ID = xid.New("ntf")
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, message, type, read, order_id, sale_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, n.ID, n.UserID, n.Message, string(n.Type), n.Read, nullIfEmpty(n.OrderID), nullIfEmpty(n.SaleID), n.CreatedAt)
		if err != nil {
			return mapError(err)
		}
	}
	return mapError(tx.Commit())
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, type, read, order_id, sale_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limitOr(limit, 50))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0, 16)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string, userID string) (*domain.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		UPDATE notifications
		SET read = true
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, message, type, read, order_id, sale_id, created_at
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("notification", id)
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("notification", id)
	}
	return nil
}

func (s *Store) DeleteNotifications(ctx context.Context, filter store.NotificationFilter) ([]string, error) {
	if filter.SaleID == "" && filter.OrderID == "" {
		return nil, store.Invalid("filter", "sale or order required")
	}
	return deleteNotifications(ctx, s.db, filter)
}

func deleteNotifications(ctx context.Context, q queryer, filter store.NotificationFilter) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		DELETE FROM notifications
		WHERE ($1::text = '' OR sale_id = $1::text)
			AND ($2::text = '' OR order_id = $2::text)
			AND ($3::text = '' OR type = $3::text)
		RETURNING id
	`, filter.SaleID, filter.OrderID, string(filter.Type))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	removed := make([]string, 0, 2)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return removed, nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var n domain.Notification
	var orderID, saleID sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.Read, &orderID, &saleID, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return n, err
		}
		return n, mapError(err)
	}
	n.OrderID = orderID.String
	n.SaleID = saleID.String
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

// UpsertUser records a user seen through the identity provider. An existing
// user keeps its active flag and creation time.
func (s *Store) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, role = EXCLUDED.role
	`, user.ID, user.Username, user.Role)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) ListUsersByRoles(ctx context.Context, roles []string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, role, active, created_at
		FROM users
		WHERE active = true AND role = ANY($1)
		ORDER BY username
	`, roles)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, 8)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("setting", key)
		}
		return nil, mapError(err)
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, key string, userID string, value []byte) error {
	if key == "" {
		return store.Invalid("key", "required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, user_id, value, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (key)
		DO UPDATE SET user_id = EXCLUDED.user_id, value = EXCLUDED.value, updated_at = now()
	`, key, nullIfEmpty(userID), value)
	return mapError(err)
}
