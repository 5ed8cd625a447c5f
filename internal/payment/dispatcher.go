package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/store"
	"fleamarket-service/internal/util"

	"go.uber.org/zap"
)

// Settlement is the final outcome of a payment attempt as reported by the
// provider, the stall owner, or the demo method.
type Settlement struct {
	OrderID       string `json:"orderId"`
	Method        string `json:"method"`
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transactionId"`
}

// Dispatcher routes payment preparation and settlement to the registered
// methods and records every attempt in the order store.
type Dispatcher struct {
	store   store.OrderStore
	methods map[string]Method
	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds every provider call.
func NewDispatcher(orderStore store.OrderStore, timeout time.Duration, methods ...Method) *Dispatcher {
	registry := make(map[string]Method, len(methods))
	for _, m := range methods {
		registry[m.Name()] = m
	}
	return &Dispatcher{
		store:   orderStore,
		methods: registry,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// Methods lists the registered method names
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) method(name string) (Method, error) {
	m, ok := d.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported payment method %q", models.ErrValidation, name)
	}
	return m, nil
}

// Supports reports whether name is a registered method
func (d *Dispatcher) Supports(name string) bool {
	_, ok := d.methods[name]
	return ok
}

// SettlesOnPrepare reports whether the named method is paid once prepared
func (d *Dispatcher) SettlesOnPrepare(name string) bool {
	m, ok := d.methods[name]
	return ok && m.SettlesOnPrepare()
}

// Prepare asks the method's provider for a payment intent and records a
// pending payment attempt. A provider failure or timeout leaves the order
// untouched.
func (d *Dispatcher) Prepare(ctx context.Context, methodName string, req PrepareRequest) (*Intent, error) {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Prepare")
	defer span.End()

	m, err := d.method(methodName)
	if err != nil {
		return nil, err
	}

	order, err := d.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.IsSettled() {
		return nil, fmt.Errorf("%w: order %s is already %s", models.ErrInvalidTransition, order.ID, order.PaymentStatus)
	}
	if req.Amount != order.TotalAmount {
		return nil, fmt.Errorf("%w: amount %d does not match order total %d", models.ErrValidation, req.Amount, order.TotalAmount)
	}
	if req.DisplayName == "" {
		req.DisplayName = DisplayName(order.Lines)
	}

	intent, err := d.callProvider(ctx, m, req)
	if err != nil {
		util.PaymentPrepareFailedTotal.WithLabelValues(m.Name()).Inc()
		d.logger.Warn("Payment preparation failed",
			zap.String("order_id", order.ID),
			zap.String("method", m.Name()),
			zap.Error(err))
		return nil, err
	}
	intent.Method = m.Name()
	intent.OrderID = order.ID
	if intent.PaymentID == "" {
		intent.PaymentID = store.NewPaymentID(m.Name())
	}

	record := &models.PaymentRecord{
		ID:      intent.PaymentID,
		OrderID: order.ID,
		Method:  m.Name(),
		Amount:  order.TotalAmount,
		Status:  models.PaymentStatusPending,
	}
	if err := d.store.CreatePaymentRecord(ctx, record); err != nil {
		return nil, err
	}

	util.PaymentPreparedTotal.WithLabelValues(m.Name()).Inc()
	d.logger.Info("Payment prepared",
		zap.String("order_id", order.ID),
		zap.String("method", m.Name()),
		zap.String("payment_id", intent.PaymentID),
		zap.String("kind", string(intent.Kind)))

	return intent, nil
}

type prepareResult struct {
	intent *Intent
	err    error
}

// callProvider runs Prepare bounded by the dispatcher timeout, even when the
// method does not watch its context.
func (d *Dispatcher) callProvider(ctx context.Context, m Method, req PrepareRequest) (*Intent, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		util.ProviderLatency.WithLabelValues(m.Name()).Observe(time.Since(start).Seconds())
	}()

	done := make(chan prepareResult, 1)
	go func() {
		intent, err := m.Prepare(ctx, req)
		done <- prepareResult{intent: intent, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s timed out", models.ErrProvider, m.Name())
			}
			return nil, fmt.Errorf("%w: %s: %v", models.ErrProvider, m.Name(), res.err)
		}
		if res.intent == nil {
			return nil, fmt.Errorf("%w: %s returned no intent", models.ErrProvider, m.Name())
		}
		return res.intent, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", models.ErrProvider, m.Name(), ctx.Err())
	}
}

// Settle applies the final outcome of a payment attempt and returns the
// settled order. Settling an already settled order fails with
// ErrInvalidTransition and changes nothing.
func (d *Dispatcher) Settle(ctx context.Context, s Settlement) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Settle")
	defer span.End()

	if _, err := d.method(s.Method); err != nil {
		return nil, err
	}

	err := d.store.TransitionPayment(ctx, s.OrderID, s.Method, s.Outcome, s.TransactionID)
	if errors.Is(err, models.ErrInvalidTransition) {
		util.SettlementConflictsTotal.Inc()
		d.logger.Warn("Settlement on settled order ignored",
			zap.String("order_id", s.OrderID),
			zap.String("method", s.Method),
			zap.String("outcome", s.Outcome))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	util.SettlementsTotal.WithLabelValues(s.Method, s.Outcome).Inc()
	d.logger.Info("Order settled",
		zap.String("order_id", s.OrderID),
		zap.String("method", s.Method),
		zap.String("outcome", s.Outcome))

	return d.store.GetOrder(ctx, s.OrderID)
}

// DisplayName names an order for the provider's checkout page
func DisplayName(lines models.OrderLines) string {
	switch len(lines) {
	case 0:
		return "Order"
	case 1:
		return lines[0].Name
	default:
		return fmt.Sprintf("%s and %d more", lines[0].Name, len(lines)-1)
	}
}
