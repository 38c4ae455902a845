package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const saleColumns = `id, customer_id, kind, status, total_cents, created_by, approved_by, created_at, approved_at`

// CreateSale checks and decrements stock for every reserved variation and
// inserts the sale with its items in a single serializable transaction.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.Invalid("items", "at least one item required")
	}

	requested := make(map[string]int, len(sale.Items))
	ids := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.Invalid("items.qty", "must be positive")
		}
		if _, seen := requested[item.VariationID]; !seen {
			ids = append(ids, item.VariationID)
		}
		requested[item.VariationID] += item.Qty
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	locked, err := s.queryVariations(ctx, pgTx, `
		SELECT `+variationColumns+`
		FROM variations v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)
		FOR UPDATE OF v
	`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Variation, len(locked))
	for _, v := range locked {
		byID[v.ID] = v
	}

	shortages := make([]store.Shortage, 0)
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, store.NotFound("variation", id)
		}
		if v.Stock < requested[id] {
			shortages = append(shortages, store.Shortage{
				Reference: v.Reference,
				Color:     v.Color,
				Size:      v.Size,
				Requested: requested[id],
				Available: v.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &store.InsufficientStockError{Shortages: shortages}
	}

	for _, id := range ids {
		if _, err := pgTx.ExecContext(ctx, `UPDATE variations SET stock = stock - $2 WHERE id = $1`, id, requested[id]); err != nil {
			return nil, mapError(err)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.CustomerID, string(sale.Kind), string(sale.Status), sale.TotalCents, sale.CreatedBy,
		nullIfEmpty(sale.ApprovedBy), sale.CreatedAt, nullTime(sale.ApprovedAt))
	if err != nil {
		return nil, mapError(err)
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, variation_id, reference, color, size, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sale.ID, item.VariationID, item.Reference, item.Color, item.Size, item.Qty, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return nil, mapError(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.getSale(ctx, s.db, id, false)
}

func (s *Store) ListSales(ctx context.Context, status domain.SaleStatus, limit int) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(status), limitOr(limit, 100))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 16)
	index := make(map[string]int, 16)
	ids := make([]string, 0, 16)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		index[sale.ID] = len(sales)
		ids = append(ids, sale.ID)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if len(ids) == 0 {
		return sales, nil
	}

	items, err := loadSaleItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for saleID, saleItems := range items {
		if i, ok := index[saleID]; ok {
			sales[i].Items = saleItems
		}
	}
	return sales, nil
}

func (s *Store) ApproveSale(ctx context.Context, id string, approverID string, at time.Time) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, approved_by = $3, approved_at = $4
		WHERE id = $1 AND status = $5
	`, id, string(domain.SaleStatusConfirmed), approverID, at, string(domain.SaleStatusPending))
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}

	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &store.InvalidTransitionError{Entity: "sale", ID: id, From: string(sale.Status), To: string(domain.SaleStatusConfirmed)}
	}
	return sale, nil
}

// RejectSale restores every reserved unit onto the variation it was taken
// from, then deletes the sale, its items and its notifications.
func (s *Store) RejectSale(ctx context.Context, id string) (*domain.Sale, []string, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.getSale(ctx, pgTx, id, true)
	if err != nil {
		return nil, nil, err
	}
	if sale.Status != domain.SaleStatusPending {
		return nil, nil, &store.InvalidTransitionError{Entity: "sale", ID: id, From: string(sale.Status), To: "rejected"}
	}

	for _, item := range sale.Items {
		res, err := pgTx.ExecContext(ctx, `UPDATE variations SET stock = stock + $2 WHERE id = $1`, item.VariationID, item.Qty)
		if err != nil {
			return nil, nil, mapError(err)
		}
		if affected, err := rowsAffected(res); err != nil {
			return nil, nil, err
		} else if affected == 0 {
			log.Printf("[postgres-store] WARN: variation %s of sale %s no longer exists, stock not restored", item.VariationID, id)
		}
	}

	removed, err := s.removeSale(ctx, pgTx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, nil, mapError(err)
	}
	return sale, removed, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, []string, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.getSale(ctx, pgTx, id, true)
	if err != nil {
		return nil, nil, err
	}
	removed, err := s.removeSale(ctx, pgTx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, nil, mapError(err)
	}
	return sale, removed, nil
}

func (s *Store) removeSale(ctx context.Context, q queryer, id string) ([]string, error) {
	removed, err := deleteNotifications(ctx, q, store.NotificationFilter{SaleID: id})
	if err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, mapError(err)
	}
	return removed, nil
}

func (s *Store) getSale(ctx context.Context, q queryer, id string, lock bool) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	sale, err := scanSale(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("sale", id)
		}
		return nil, err
	}

	items, err := loadSaleItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	sale.Items = items[id]
	if sale.Items == nil {
		sale.Items = []domain.SaleItem{}
	}
	return &sale, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var approvedBy sql.NullString
	var approvedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.CustomerID, &sale.Kind, &sale.Status, &sale.TotalCents, &sale.CreatedBy,
		&approvedBy, &sale.CreatedAt, &approvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sale, err
		}
		return sale, mapError(err)
	}
	sale.ApprovedBy = approvedBy.String
	sale.ApprovedAt = timePtr(approvedAt)
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.Items = []domain.SaleItem{}
	return sale, nil
}

func loadSaleItems(ctx context.Context, q queryer, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT sale_id, variation_id, reference, color, size, qty, unit_price_cents, subtotal_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, id
	`, saleIDs)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.VariationID, &item.Reference, &item.Color, &item.Size, &item.Qty, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return nil, mapError(err)
		}
		items[saleID] = append(items[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return items, nil
}
