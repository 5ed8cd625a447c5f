package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleamarket-service/internal/models"
)

// CreatePaymentRecord inserts a pending payment attempt. The order must exist,
// still be pending, and the amount must equal the order total.
func (s *Store) CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err, "payment record")
	}
	defer tx.Rollback()

	var order struct {
		TotalAmount   int64  `db:"total_amount"`
		PaymentStatus string `db:"payment_status"`
	}
	err = tx.GetContext(ctx, &order,
		"SELECT total_amount, payment_status FROM orders WHERE id = $1 FOR UPDATE", record.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, record.OrderID)
	}
	if err != nil {
		return mapError(err, "payment record")
	}
	if err := checkPaymentRecord(record, order.TotalAmount, order.PaymentStatus); err != nil {
		return err
	}

	if record.Status == "" {
		record.Status = models.PaymentStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_records (id, order_id, method, amount, status, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.OrderID, record.Method, record.Amount, record.Status, record.TransactionID, record.CreatedAt)
	if err != nil {
		return mapError(err, "payment record")
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "payment record")
	}
	return nil
}

// ListPaymentRecords retrieves the payment attempts of an order, newest first
func (s *Store) ListPaymentRecords(ctx context.Context, orderID string) ([]models.PaymentRecord, error) {
	records := []models.PaymentRecord{}
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM payment_records WHERE order_id = $1 ORDER BY created_at DESC, id DESC", orderID)
	if err != nil {
		return nil, mapError(err, "payment records")
	}
	return records, nil
}

func checkPaymentRecord(record *models.PaymentRecord, total int64, orderStatus string) error {
	if record.ID == "" || record.Method == "" {
		return fmt.Errorf("%w: payment record needs an id and a method", models.ErrValidation)
	}
	if record.Status != "" && record.Status != models.PaymentStatusPending {
		return fmt.Errorf("%w: new payment records start pending", models.ErrValidation)
	}
	if orderStatus != models.PaymentStatusPending {
		return fmt.Errorf("%w: order %s is already settled", models.ErrInvalidTransition, record.OrderID)
	}
	if record.Amount != total {
		return fmt.Errorf("%w: payment amount %d does not match order total %d", models.ErrValidation, record.Amount, total)
	}
	return nil
}
