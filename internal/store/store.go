package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fleamarket-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

//go:embed schema.sql
var schema string

// OrderStore is the authoritative record of orders and their payment state.
// TransitionPayment is the only mutation of an existing order.
type OrderStore interface {
	CreateOrder(ctx context.Context, in models.NewOrder) (string, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error
	ListPaymentRecords(ctx context.Context, orderID string) ([]models.PaymentRecord, error)
	TransitionPayment(ctx context.Context, orderID, method, status, transactionID string) error
	Ping(ctx context.Context) error
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the connection, used by the readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the orders and payment_records tables if missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// NewOrderID returns a time-sortable id with a random suffix. ulid.Make is
// monotonic within the process and safe for concurrent use.
func NewOrderID() string {
	return "FM" + ulid.Make().String()
}

// ValidateNewOrder checks the order input before anything is persisted.
// The lines total is accumulated without wrapping int64.
func ValidateNewOrder(in models.NewOrder) error {
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: order has no lines", models.ErrValidation)
	}
	if in.TotalAmount < 0 {
		return fmt.Errorf("%w: total amount must be >= 0, got %d", models.ErrValidation, in.TotalAmount)
	}

	var sum int64
	seen := make(map[string]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return fmt.Errorf("%w: line without product id", models.ErrValidation)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("%w: duplicate line for product %s", models.ErrValidation, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		if l.Quantity < 1 || l.Quantity > models.MaxLineQuantity {
			return fmt.Errorf("%w: quantity of %s must be between 1 and %d", models.ErrValidation, l.ProductID, models.MaxLineQuantity)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: unit price of %s must be >= 0", models.ErrValidation, l.ProductID)
		}
		if l.UnitPrice > 0 && int64(l.Quantity) > (math.MaxInt64-sum)/l.UnitPrice {
			return fmt.Errorf("%w: lines total overflows", models.ErrValidation)
		}
		sum += l.Subtotal()
	}
	if sum != in.TotalAmount {
		return fmt.Errorf("%w: total amount %d does not match lines total %d", models.ErrValidation, in.TotalAmount, sum)
	}
	return nil
}

// ValidateTransition checks the requested settlement outcome
func ValidateTransition(method, status string) error {
	if strings.TrimSpace(method) == "" {
		return fmt.Errorf("%w: payment method is required", models.ErrValidation)
	}
	if !models.IsFinalStatus(status) {
		return fmt.Errorf("%w: unsupported payment status %q", models.ErrValidation, status)
	}
	return nil
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// mapError classifies driver errors into the lifecycle taxonomy
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrInvalidTransition) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing order", models.ErrNotFound, what)
		case pqCheckViolation:
			return fmt.Errorf("%w: %s: %s", models.ErrValidation, what, pqErr.Message)
		case pqUniqueViolation:
			return fmt.Errorf("%w: duplicate %s: %s", models.ErrPersistence, what, pqErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", models.ErrPersistence, what, err)
}
