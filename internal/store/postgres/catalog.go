package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const variationColumns = `v.id, v.product_id, p.reference, v.color, v.size, v.stock, v.barcode`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, image_url, retail_price_cents, wholesale_price_cents, created_at
		FROM products
		ORDER BY reference
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	index := make(map[string]int, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		index[product.ID] = len(products)
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	variations, err := s.queryVariations(ctx, s.db, `
		SELECT `+variationColumns+`
		FROM variations v
		JOIN products p ON p.id = v.product_id
		ORDER BY p.reference, v.color, v.size
	`)
	if err != nil {
		return nil, err
	}
	for _, v := range variations {
		if i, ok := index[v.ProductID]; ok {
			products[i].Variations = append(products[i].Variations, v)
		}
	}
	return products, nil
}

func (s *Store) GetProductByReference(ctx context.Context, reference string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT id, reference, image_url, retail_price_cents, wholesale_price_cents, created_at
		FROM products
		WHERE reference = $1
	`, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("product", reference)
		}
		return nil, err
	}

	product.Variations, err = s.queryVariations(ctx, s.db, `
		SELECT `+variationColumns+`
		FROM variations v
		JOIN products p ON p.id = v.product_id
		WHERE v.product_id = $1
		ORDER BY v.color, v.size
	`, product.ID)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Reference == "" {
		return nil, store.Invalid("reference", "required")
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	for i := range product.Variations {
		v := &product.Variations[i]
		if !domain.IsKnownSize(v.Size) {
			return nil, store.Invalid("variations.size", "unknown size "+v.Size)
		}
		if v.Stock < 0 {
			return nil, store.Invalid("variations.stock", "must not be negative")
		}
		if v.ID == "" {
			v.ID = xid.New("var")
		}
		v.ProductID = product.ID
		v.Reference = product.Reference
		v.Barcode = domain.BarcodeFor(product.Reference, v.Color, v.Size)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, reference, image_url, retail_price_cents, wholesale_price_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.Reference, nullIfEmpty(product.ImageURL), product.RetailPriceCents, product.WholesalePriceCents, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.Invalid("reference", "already exists")
		}
		return nil, mapError(err)
	}

	for _, v := range product.Variations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO variations (id, product_id, color, size, stock, barcode)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, v.ID, v.ProductID, v.Color, v.Size, v.Stock, v.Barcode)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, store.Invalid("variations.barcode", "duplicate barcode "+v.Barcode)
			}
			return nil, mapError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (s *Store) GetVariation(ctx context.Context, id string) (*domain.Variation, error) {
	return s.getVariation(ctx, s.db, `WHERE v.id = $1`, id)
}

func (s *Store) GetVariationByBarcode(ctx context.Context, barcode string) (*domain.Variation, error) {
	return s.getVariation(ctx, s.db, `WHERE v.barcode = $1`, barcode)
}

func (s *Store) AdjustVariationStock(ctx context.Context, id string, delta int) (*domain.Variation, int, error) {
	return s.updateStock(ctx, id, func(v domain.Variation) (int, error) {
		if v.Stock+delta < 0 {
			return 0, &store.InsufficientStockError{Shortages: []store.Shortage{{
				Reference: v.Reference,
				Color:     v.Color,
				Size:      v.Size,
				Requested: -delta,
				Available: v.Stock,
			}}}
		}
		return v.Stock + delta, nil
	})
}

func (s *Store) SetVariationStock(ctx context.Context, id string, stock int) (*domain.Variation, int, error) {
	if stock < 0 {
		return nil, 0, store.Invalid("stock", "must not be negative")
	}
	return s.updateStock(ctx, id, func(domain.Variation) (int, error) {
		return stock, nil
	})
}

// updateStock locks the variation row, computes the new stock and writes it
// in one transaction. It returns the updated row and the previous stock.
func (s *Store) updateStock(ctx context.Context, id string, next func(domain.Variation) (int, error)) (*domain.Variation, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	v, err := s.getVariation(ctx, tx, `WHERE v.id = $1 FOR UPDATE OF v`, id)
	if err != nil {
		return nil, 0, err
	}
	previous := v.Stock
	stock, err := next(*v)
	if err != nil {
		return nil, previous, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE variations SET stock = $2 WHERE id = $1`, id, stock); err != nil {
		return nil, previous, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, previous, mapError(err)
	}

	v.Stock = stock
	return v, previous, nil
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.InventoryMovement) error {
	if err := store.ValidateMovement(movement); err != nil {
		return err
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	details, err := json.Marshal(movement.Detail)
	if err != nil {
		return store.Wrap(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inventory_movements (id, variation_id, user_id, type, quantity, method, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, movement.ID, movement.VariationID, nullIfEmpty(movement.UserID), string(movement.Type), movement.Quantity, string(movement.Method), details, movement.CreatedAt)
	return mapError(err)
}

func (s *Store) ListMovements(ctx context.Context, limit int) ([]domain.InventoryMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, variation_id, user_id, type, quantity, method, details, created_at
		FROM inventory_movements
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limitOr(limit, 100))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	movements := make([]domain.InventoryMovement, 0, 32)
	for rows.Next() {
		var m domain.InventoryMovement
		var userID sql.NullString
		var details []byte
		if err := rows.Scan(&m.ID, &m.VariationID, &userID, &m.Type, &m.Quantity, &m.Method, &details, &m.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if err := json.Unmarshal(details, &m.Detail); err != nil {
			log.Printf("[postgres-store] WARN: unreadable movement details id=%s: %v", m.ID, err)
		}
		m.UserID = userID.String
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return movements, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var imageURL sql.NullString
	if err := row.Scan(&p.ID, &p.Reference, &imageURL, &p.RetailPriceCents, &p.WholesalePriceCents, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, mapError(err)
	}
	p.ImageURL = imageURL.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.Variations = []domain.Variation{}
	return p, nil
}

func (s *Store) getVariation(ctx context.Context, q queryer, where string, arg string) (*domain.Variation, error) {
	var v domain.Variation
	err := q.QueryRowContext(ctx, `
		SELECT `+variationColumns+`
		FROM variations v
		JOIN products p ON p.id = v.product_id
		`+where, arg).Scan(&v.ID, &v.ProductID, &v.Reference, &v.Color, &v.Size, &v.Stock, &v.Barcode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("variation", arg)
		}
		return nil, mapError(err)
	}
	return &v, nil
}

func (s *Store) queryVariations(ctx context.Context, q queryer, query string, args ...any) ([]domain.Variation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	variations := make([]domain.Variation, 0, len(domain.Sizes))
	for rows.Next() {
		var v domain.Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Reference, &v.Color, &v.Size, &v.Stock, &v.Barcode); err != nil {
			return nil, mapError(err)
		}
		variations = append(variations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return variations, nil
}
