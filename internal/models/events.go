package models

import "time"

// Event types
const (
	EventTypeOrderSettled     = "ORDER_SETTLED"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderSettledEvent is the order confirmation message sent after settlement
type OrderSettledEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	PaymentMethod string          `json:"payment_method"`
	Outcome       string          `json:"outcome"`
	TotalAmount   int64           `json:"total_amount"`
	Items         []OrderItemData `json:"items"`
}

// PaymentConfirmedEvent is the provider confirmation mapped onto a settlement
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	Method        string `json:"method"`
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
