package service

import (
	"context"
	"fmt"
	"strings"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/store"
	"fleamarket-service/internal/util"

	"go.uber.org/zap"
)

// OrderService handles direct order creation and lookups
type OrderService struct {
	store          store.OrderStore
	businessNumber string
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orderStore store.OrderStore, businessNumber string) *OrderService {
	return &OrderService{
		store:          orderStore,
		businessNumber: businessNumber,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	SessionID     string            `json:"-"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone"`
	Lines         models.OrderLines `json:"lines"`
	TotalAmount   int64             `json:"totalAmount"`
	Notes         string            `json:"notes"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID        string `json:"orderId"`
	Message        string `json:"message"`
	BusinessNumber string `json:"businessNumber"`
}

// OrderDetail is an order with every payment attempt made for it
type OrderDetail struct {
	*models.Order
	Payments []models.PaymentRecord `json:"payments"`
}

// CreateOrder validates the customer details and stores a pending order
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	name, phone, err := customerDetails(req.CustomerName, req.CustomerPhone)
	if err != nil {
		util.CheckoutRejectedTotal.WithLabelValues("customer_details").Inc()
		return nil, err
	}

	orderID, err := s.store.CreateOrder(ctx, models.NewOrder{
		SessionID:     req.SessionID,
		CustomerName:  name,
		CustomerPhone: phone,
		Lines:         req.Lines,
		TotalAmount:   req.TotalAmount,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", orderID),
		zap.Int64("total_amount", req.TotalAmount),
		zap.Int("lines", len(req.Lines)))

	return &CreateOrderResponse{
		OrderID:        orderID,
		Message:        "Order created successfully",
		BusinessNumber: s.businessNumber,
	}, nil
}

// GetOrder retrieves an order with its payment attempts
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDetail, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payments, err := s.store.ListPaymentRecords(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetail{Order: order, Payments: payments}, nil
}

// ListOrders retrieves every order, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrders(ctx)
}

func customerDetails(name, phone string) (string, string, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return "", "", fmt.Errorf("%w: customer name and phone are required", models.ErrValidation)
	}
	return name, phone, nil
}
