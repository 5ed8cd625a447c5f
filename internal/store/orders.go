package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleamarket-service/internal/models"

	"github.com/google/uuid"
)

const selectOrder = `
	SELECT o.id, o.session_id, o.customer_name, o.customer_phone, o.lines, o.total_amount,
	       o.payment_method, o.payment_status, o.notes, o.created_at,
	       p.status AS latest_payment_status, p.transaction_id
	FROM orders o
	LEFT JOIN LATERAL (
		SELECT status, transaction_id FROM payment_records
		WHERE order_id = o.id
		ORDER BY (method = o.payment_method) DESC NULLS LAST, created_at DESC, id DESC
		LIMIT 1
	) p ON TRUE`

// CreateOrder validates and inserts a new pending order
func (s *Store) CreateOrder(ctx context.Context, in models.NewOrder) (string, error) {
	if err := ValidateNewOrder(in); err != nil {
		return "", err
	}

	orderID := NewOrderID()
	query := `
		INSERT INTO orders (id, session_id, customer_name, customer_phone, lines, total_amount, payment_status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		orderID, models.StringPtr(in.SessionID), in.CustomerName, in.CustomerPhone, in.Lines,
		in.TotalAmount, models.PaymentStatusPending, models.StringPtr(in.Notes), time.Now().UTC())
	if err != nil {
		return "", mapError(err, "order")
	}
	return orderID, nil
}

// GetOrder retrieves an order joined with its latest payment record
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, selectOrder+" WHERE o.id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// ListOrders retrieves every order, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, selectOrder+" ORDER BY o.created_at DESC, o.id DESC")
	if err != nil {
		return nil, mapError(err, "orders")
	}
	return orders, nil
}

// TransitionPayment settles a pending order exactly once. The conditional
// update and the payment record writes commit together; pending attempts of
// other methods are closed as failed.
func (s *Store) TransitionPayment(ctx context.Context, orderID, method, status, transactionID string) error {
	if err := ValidateTransition(method, status); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err, "transition")
	}
	defer tx.Rollback()

	var total int64
	err = tx.GetContext(ctx, &total, `
		UPDATE orders SET payment_method = $1, payment_status = $2
		WHERE id = $3 AND payment_status = 'pending'
		RETURNING total_amount`,
		method, status, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID); err != nil {
			return mapError(err, "transition")
		}
		if !exists {
			return fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
		}
		return fmt.Errorf("%w: order %s is already settled", models.ErrInvalidTransition, orderID)
	}
	if err != nil {
		return mapError(err, "transition")
	}

	txID := models.StringPtr(transactionID)
	res, err := tx.ExecContext(ctx, `
		UPDATE payment_records SET status = $1, transaction_id = COALESCE($2, transaction_id)
		WHERE id = (
			SELECT id FROM payment_records
			WHERE order_id = $3 AND method = $4 AND status = 'pending'
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)`,
		status, txID, orderID, method)
	if err != nil {
		return mapError(err, "payment record")
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "payment record")
	}
	if updated == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_records (id, order_id, method, amount, status, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			NewPaymentID(method), orderID, method, total, status, txID, time.Now().UTC())
		if err != nil {
			return mapError(err, "payment record")
		}
	}

	// attempts with other methods can no longer settle this order
	_, err = tx.ExecContext(ctx, `
		UPDATE payment_records SET status = 'failed'
		WHERE order_id = $1 AND status = 'pending'`,
		orderID)
	if err != nil {
		return mapError(err, "payment record")
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "transition")
	}
	return nil
}

// NewPaymentID returns an id for a payment record the provider did not name
func NewPaymentID(method string) string {
	return fmt.Sprintf("%s_%s", method, uuid.New().String())
}
