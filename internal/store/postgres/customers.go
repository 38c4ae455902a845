package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/xid"
)

const customerColumns = `c.id, c.name, c.document, c.phone, c.city, c.address, c.notes`

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, document, phone, city, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Document), nullIfEmpty(customer.Phone),
		nullIfEmpty(customer.City), nullIfEmpty(customer.Address), nullIfEmpty(customer.Notes))
	if err != nil {
		return nil, mapError(err)
	}
	customer.LastSaleAt = nil
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`, NULL::timestamptz
		FROM customers c
		WHERE c.id = $1
	`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("customer", id)
		}
		return nil, mapError(err)
	}
	return c, nil
}

// ListCustomers returns customers by name with the date of their newest
// confirmed sale.
func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`, (
			SELECT max(sa.created_at)
			FROM sales sa
			WHERE sa.customer_id = c.id AND sa.status = 'confirmed'
		)
		FROM customers c
		ORDER BY c.name ASC, c.id ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, document = $3, phone = $4, city = $5, address = $6, notes = $7
		WHERE id = $1
	`, customer.ID, customer.Name, nullIfEmpty(customer.Document), nullIfEmpty(customer.Phone),
		nullIfEmpty(customer.City), nullIfEmpty(customer.Address), nullIfEmpty(customer.Notes))
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.NotFound("customer", customer.ID)
	}
	customer.LastSaleAt = nil
	return &customer, nil
}

// DeleteCustomer refuses to remove a customer that still has sales.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return store.Invalid("customer_id", "customer has sales")
		}
		return mapError(err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("customer", id)
	}
	return nil
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var document, phone, city, address, notes sql.NullString
	var lastSale sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &document, &phone, &city, &address, &notes, &lastSale); err != nil {
		return nil, err
	}
	c.Document = document.String
	c.Phone = phone.String
	c.City = city.String
	c.Address = address.String
	c.Notes = notes.String
	c.LastSaleAt = timePtr(lastSale)
	return &c, nil
}
