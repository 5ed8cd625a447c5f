package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleamarket-service/internal/cart"
	"fleamarket-service/internal/idempotency"
	"fleamarket-service/internal/models"
	"fleamarket-service/internal/payment"
	"fleamarket-service/internal/util"

	"go.uber.org/zap"
)

// State is where a checkout attempt stands
type State string

const (
	StateEmpty           State = "empty"
	StateReviewing       State = "reviewing"
	StateAwaitingPayment State = "awaiting_payment"
	StateSettled         State = "settled"
)

var ErrEmptyCart = fmt.Errorf("%w: add items to the cart", models.ErrValidation)

// ErrSettlementFailed marks a settlement that could not be recorded. The
// order is still pending and the payment can be confirmed again.
var ErrSettlementFailed = errors.New("payment failed, please retry")

// Catalog is the product lookup the checkout needs
type Catalog interface {
	Products() []models.Product
	Lookup(id string) (models.Product, bool)
}

// Notifier tells the outside world an order was settled. Failures never
// change the settlement.
type Notifier interface {
	NotifySettled(ctx context.Context, order *models.Order) error
}

type CheckoutOptions struct {
	IdempotencyTTL      time.Duration
	NotificationTimeout time.Duration
}

// CheckoutService drives a cart through order creation, payment and
// settlement.
type CheckoutService struct {
	catalog    Catalog
	sessions   cart.SessionStore
	orders     *OrderService
	dispatcher *payment.Dispatcher
	keys       idempotency.Store
	notifier   Notifier
	opts       CheckoutOptions
	logger     *zap.Logger

	notifications sync.WaitGroup
}

// NewCheckoutService creates the checkout coordinator. notifier may be nil.
func NewCheckoutService(
	catalog Catalog,
	sessions cart.SessionStore,
	orders *OrderService,
	dispatcher *payment.Dispatcher,
	keys idempotency.Store,
	notifier Notifier,
	opts CheckoutOptions,
) *CheckoutService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = time.Hour
	}
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = 5 * time.Second
	}
	return &CheckoutService{
		catalog:    catalog,
		sessions:   sessions,
		orders:     orders,
		dispatcher: dispatcher,
		keys:       keys,
		notifier:   notifier,
		opts:       opts,
		logger:     util.GetLogger(),
	}
}

// CartView is a session's cart as shown to the customer
type CartView struct {
	SessionID string       `json:"sessionId"`
	State     State        `json:"state"`
	Summary   cart.Summary `json:"summary"`
}

// CheckoutRequest represents a customer's pay button press
type CheckoutRequest struct {
	SessionID      string `json:"-"`
	CustomerName   string `json:"customerName"`
	CustomerPhone  string `json:"customerPhone"`
	Notes          string `json:"notes"`
	Method         string `json:"method"`
	IdempotencyKey string `json:"-"`
}

// CheckoutResult is the outcome of Submit. Intent is set while awaiting
// payment, Order once settled.
type CheckoutResult struct {
	State    State           `json:"state"`
	OrderID  string          `json:"orderId,omitempty"`
	Intent   *payment.Intent `json:"intent,omitempty"`
	Order    *models.Order   `json:"order,omitempty"`
	Replayed bool            `json:"replayed,omitempty"`
}

// CompletionResult is what the customer sees after settlement
type CompletionResult struct {
	State   State         `json:"state"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *models.Order `json:"order"`
}

// Cart returns the session's cart and summary
func (s *CheckoutService) Cart(ctx context.Context, sessionID string) (*CartView, error) {
	c, err := s.sessions.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %v", models.ErrPersistence, err)
	}
	return s.view(sessionID, c), nil
}

// UpdateCart sets the quantity of a product; zero removes the line
func (s *CheckoutService) UpdateCart(ctx context.Context, sessionID, productID string, quantity int) (*CartView, error) {
	if _, ok := s.catalog.Lookup(productID); !ok && quantity > 0 {
		return nil, fmt.Errorf("%w: product %s", models.ErrNotFound, productID)
	}

	c, err := s.sessions.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %v", models.ErrPersistence, err)
	}
	updated, err := cart.UpdateQuantity(c, productID, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveCart(ctx, sessionID, updated); err != nil {
		return nil, fmt.Errorf("%w: save cart: %v", models.ErrPersistence, err)
	}
	return s.view(sessionID, updated), nil
}

// ClearCart empties the session's cart
func (s *CheckoutService) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.sessions.ClearCart(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: clear cart: %v", models.ErrPersistence, err)
	}
	return nil
}

// Review moves a non-empty cart into review
func (s *CheckoutService) Review(ctx context.Context, sessionID string) (*CartView, error) {
	view, err := s.Cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if view.Summary.IsEmpty() {
		return view, ErrEmptyCart
	}
	return view, nil
}

// Submit creates the order from the cart and prepares its payment. When the
// order exists but payment preparation fails, the result still carries the
// order id with state Reviewing, and the order stays pending.
func (s *CheckoutService) Submit(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Submit")
	defer span.End()

	name, phone, err := customerDetails(req.CustomerName, req.CustomerPhone)
	if err != nil {
		util.CheckoutRejectedTotal.WithLabelValues("customer_details").Inc()
		return &CheckoutResult{State: StateReviewing}, err
	}
	if !s.dispatcher.Supports(req.Method) {
		util.CheckoutRejectedTotal.WithLabelValues("method").Inc()
		return &CheckoutResult{State: StateReviewing}, fmt.Errorf("%w: unsupported payment method %q", models.ErrValidation, req.Method)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if res, err := s.replay(ctx, key, req.Method); res != nil || err != nil {
			return res, err
		}
		reserved, err := s.keys.Reserve(ctx, key, s.opts.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: reserve idempotency key: %v", models.ErrPersistence, err)
		}
		if !reserved {
			return nil, fmt.Errorf("%w: a checkout with this idempotency key is in progress", models.ErrInvalidTransition)
		}
	}

	view, err := s.Review(ctx, req.SessionID)
	if err != nil {
		s.release(ctx, key)
		if errors.Is(err, ErrEmptyCart) {
			util.CheckoutRejectedTotal.WithLabelValues("empty_cart").Inc()
			return &CheckoutResult{State: StateEmpty}, err
		}
		return nil, err
	}

	created, err := s.orders.CreateOrder(ctx, &CreateOrderRequest{
		SessionID:     req.SessionID,
		CustomerName:  name,
		CustomerPhone: phone,
		Lines:         view.Summary.Snapshot(),
		TotalAmount:   view.Summary.TotalAmount,
		Notes:         req.Notes,
	})
	if err != nil {
		s.release(ctx, key)
		return &CheckoutResult{State: StateReviewing}, err
	}

	if key != "" {
		if err := s.keys.Complete(ctx, key, created.OrderID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to record idempotency key",
				zap.String("order_id", created.OrderID),
				zap.Error(err))
		}
	}

	return s.Pay(ctx, req.Method, payment.PrepareRequest{OrderID: created.OrderID, Amount: view.Summary.TotalAmount})
}

// replay returns the outcome for a key that already produced an order. A
// still pending order gets a fresh payment intent.
func (s *CheckoutService) replay(ctx context.Context, key, method string) (*CheckoutResult, error) {
	orderID, err := s.keys.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup idempotency key: %v", models.ErrPersistence, err)
	}
	if orderID == "" {
		return nil, nil
	}

	order, err := s.orders.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", orderID))

	if order.IsSettled() {
		return &CheckoutResult{State: StateSettled, OrderID: orderID, Order: order, Replayed: true}, nil
	}
	res, err := s.Pay(ctx, method, payment.PrepareRequest{OrderID: orderID, Amount: order.TotalAmount})
	if res != nil {
		res.Replayed = true
	}
	return res, err
}

// Pay prepares a payment for an existing pending order. Methods that settle
// on prepare are completed right away.
func (s *CheckoutService) Pay(ctx context.Context, method string, req payment.PrepareRequest) (*CheckoutResult, error) {
	orderID := req.OrderID
	intent, err := s.dispatcher.Prepare(ctx, method, req)
	if err != nil {
		return &CheckoutResult{State: StateReviewing, OrderID: orderID}, err
	}

	if !s.dispatcher.SettlesOnPrepare(method) {
		return &CheckoutResult{State: StateAwaitingPayment, OrderID: orderID, Intent: intent}, nil
	}

	done, err := s.Complete(ctx, payment.Settlement{
		OrderID:       orderID,
		Method:        method,
		Outcome:       models.PaymentStatusCompleted,
		TransactionID: intent.PaymentID,
	})
	if err != nil {
		return &CheckoutResult{State: StateAwaitingPayment, OrderID: orderID, Intent: intent}, err
	}
	return &CheckoutResult{State: StateSettled, OrderID: orderID, Intent: intent, Order: done.Order}, nil
}

// Complete settles the order. A completed payment clears the customer's
// cart; a failed one keeps it so the customer can retry.
func (s *CheckoutService) Complete(ctx context.Context, settlement payment.Settlement) (*CompletionResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Complete")
	defer span.End()

	order, err := s.dispatcher.Settle(ctx, settlement)
	if errors.Is(err, models.ErrPersistence) {
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
	}
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{State: StateSettled, Order: order}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		result.Success = true
		result.Message = "payment completed"
		if order.SessionID != nil {
			if err := s.sessions.ClearCart(ctx, *order.SessionID); err != nil {
				s.logger.Warn("Failed to clear cart after payment",
					zap.String("order_id", order.ID),
					zap.Error(err))
			}
		}
	} else {
		result.Message = "payment failed, please retry"
	}

	s.notify(order)
	return result, nil
}

// notify sends the settlement notification in the background
func (s *CheckoutService) notify(order *models.Order) {
	if s.notifier == nil {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotificationTimeout)
		defer cancel()

		if err := s.notifier.NotifySettled(ctx, order); err != nil {
			util.NotificationFailuresTotal.Inc()
			s.logger.Error("Failed to send settlement notification",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}()
}

// Drain waits for in-flight notifications, used on shutdown
func (s *CheckoutService) Drain() {
	s.notifications.Wait()
}

func (s *CheckoutService) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.keys.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *CheckoutService) view(sessionID string, c cart.Cart) *CartView {
	summary := cart.DeriveSummary(c, s.catalog)
	state := StateReviewing
	if summary.IsEmpty() {
		state = StateEmpty
	}
	return &CartView{SessionID: sessionID, State: state, Summary: summary}
}
