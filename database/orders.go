package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-svc/models"

	"github.com/google/uuid"
)

const orderColumns = `id, user_id, receipt, items, customer_name, customer_email, customer_phone, customer_address,
	subtotal, shipping, total, currency, payment_status, order_status,
	provider_order_id, provider_payment_id, provider_signature, paid_at, created_at, updated_at`

// OrderStore persists orders in PostgreSQL. Payment status transitions are
// compare-and-set on payment_status = 'created', so concurrent callbacks for
// the same order cannot both win.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o        models.Order
		items    []byte
		currency string
		paidAt   sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Receipt, &items,
		&o.CustomerInfo.Name, &o.CustomerInfo.Email, &o.CustomerInfo.Phone, &o.CustomerInfo.Address,
		&o.Subtotal, &o.Shipping, &o.Total, &currency, &o.PaymentStatus, &o.OrderStatus,
		&o.ProviderOrderID, &o.ProviderPaymentID, &o.ProviderSignature, &paidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Currency = currency
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	o.Items = []models.LineItem{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
		}
	}
	return &o, nil
}

// Create inserts a new order and fills in the database timestamps.
func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, receipt, items, customer_name, customer_email, customer_phone, customer_address,
			subtotal, shipping, total, currency, payment_status, order_status, provider_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Receipt, items,
		o.CustomerInfo.Name, o.CustomerInfo.Email, o.CustomerInfo.Phone, o.CustomerInfo.Address,
		o.Subtotal, o.Shipping, o.Total, o.Currency, o.PaymentStatus, o.OrderStatus, o.ProviderOrderID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// FindForUser returns the order only when userID owns it. Unknown ids,
// malformed ids and foreign orders all yield models.ErrOrderNotFound.
func (s *OrderStore) FindForUser(ctx context.Context, id string, userID int64) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrOrderNotFound
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// MarkPaid moves a created order to paid/confirmed. It returns
// models.ErrStatusConflict when the order is no longer in the created state.
func (s *OrderStore) MarkPaid(ctx context.Context, id string, userID int64, paymentID, signature string, paidAt time.Time) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE orders SET payment_status = $1, order_status = $2, provider_payment_id = $3,
			provider_signature = $4, paid_at = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND user_id = $7 AND payment_status = $8
		RETURNING `+orderColumns,
		models.PaymentStatusPaid, models.OrderStatusConfirmed, paymentID,
		signature, paidAt, id, userID, models.PaymentStatusCreated,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return o, nil
}

// MarkFailed moves a created order to failed. Like MarkPaid it never touches
// an order that already left the created state.
func (s *OrderStore) MarkFailed(ctx context.Context, id string, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3 AND payment_status = $4`,
		models.PaymentStatusFailed, id, userID, models.PaymentStatusCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.ErrStatusConflict
	}
	return nil
}
