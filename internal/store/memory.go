package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleamarket-service/internal/models"
)

// MemoryStore is an OrderStore held in process memory. It is used when
// STORE_DRIVER=memory and by the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*models.Order
	payments map[string][]models.PaymentRecord
	now      func() time.Time

	// FailWrites makes every mutation fail with ErrPersistence
	FailWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*models.Order),
		payments: make(map[string][]models.PaymentRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) CreateOrder(_ context.Context, in models.NewOrder) (string, error) {
	if err := ValidateNewOrder(in); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return "", fmt.Errorf("%w: order: write refused", models.ErrPersistence)
	}

	orderID := NewOrderID()
	if _, dup := m.orders[orderID]; dup {
		return "", fmt.Errorf("%w: duplicate order: %s", models.ErrPersistence, orderID)
	}
	m.orders[orderID] = &models.Order{
		ID:            orderID,
		SessionID:     models.StringPtr(in.SessionID),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Lines:         append(models.OrderLines(nil), in.Lines...),
		TotalAmount:   in.TotalAmount,
		PaymentStatus: models.PaymentStatusPending,
		Notes:         models.StringPtr(in.Notes),
		CreatedAt:     m.now(),
	}
	return orderID, nil
}

func (m *MemoryStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	out := m.joined(o)
	return &out, nil
}

func (m *MemoryStore) ListOrders(context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, m.joined(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (m *MemoryStore) CreatePaymentRecord(_ context.Context, record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("%w: payment record: write refused", models.ErrPersistence)
	}

	o, ok := m.orders[record.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, record.OrderID)
	}
	if err := checkPaymentRecord(record, o.TotalAmount, o.PaymentStatus); err != nil {
		return err
	}
	for _, existing := range m.payments[record.OrderID] {
		if existing.ID == record.ID {
			return fmt.Errorf("%w: duplicate payment record: %s", models.ErrPersistence, record.ID)
		}
	}

	if record.Status == "" {
		record.Status = models.PaymentStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	m.payments[record.OrderID] = append(m.payments[record.OrderID], *record)
	return nil
}

func (m *MemoryStore) ListPaymentRecords(_ context.Context, orderID string) ([]models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.payments[orderID]
	out := make([]models.PaymentRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// TransitionPayment holds the write lock for the whole check-and-set, so
// concurrent settlements of one order serialize and only the first wins.
func (m *MemoryStore) TransitionPayment(_ context.Context, orderID, method, status, transactionID string) error {
	if err := ValidateTransition(method, status); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, orderID)
	}
	if o.PaymentStatus != models.PaymentStatusPending {
		return fmt.Errorf("%w: order %s is already settled", models.ErrInvalidTransition, orderID)
	}
	if m.FailWrites {
		return fmt.Errorf("%w: transition: write refused", models.ErrPersistence)
	}

	txID := models.StringPtr(transactionID)
	records := m.payments[orderID]
	updated := false
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Method == method && records[i].Status == models.PaymentStatusPending {
			records[i].Status = status
			if txID != nil {
				records[i].TransactionID = txID
			}
			updated = true
			break
		}
	}
	for i := range records {
		if records[i].Status == models.PaymentStatusPending {
			records[i].Status = models.PaymentStatusFailed
		}
	}
	if !updated {
		m.payments[orderID] = append(records, models.PaymentRecord{
			ID:            NewPaymentID(method),
			OrderID:       orderID,
			Method:        method,
			Amount:        o.TotalAmount,
			Status:        status,
			TransactionID: txID,
			CreatedAt:     m.now(),
		})
	}

	o.PaymentMethod = &method
	o.PaymentStatus = status
	return nil
}

// joined copies o and attaches its latest payment record, preferring the
// settling method once there is one; caller holds mu
func (m *MemoryStore) joined(o *models.Order) models.Order {
	out := *o
	out.Lines = append(models.OrderLines(nil), o.Lines...)

	records := m.payments[o.ID]
	if len(records) == 0 {
		return out
	}
	latest := records[len(records)-1]
	if o.PaymentMethod != nil {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].Method == *o.PaymentMethod {
				latest = records[i]
				break
			}
		}
	}
	status := latest.Status
	out.LatestPaymentStatus = &status
	out.TransactionID = latest.TransactionID
	return out
}
