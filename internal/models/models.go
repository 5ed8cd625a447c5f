package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product represents an entry of the stall catalog
type Product struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Price       int64  `yaml:"price" json:"price"`
	Category    string `yaml:"category" json:"category"`
	Image       string `yaml:"image,omitempty" json:"image,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// MaxLineQuantity bounds the quantity of a single cart or order line
const MaxLineQuantity = 999

// OrderLine is a catalog snapshot taken when the order was placed
type OrderLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Subtotal returns unit price times quantity
func (l OrderLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// OrderLines is stored as a JSON document next to the order row
type OrderLines []OrderLine

// Value implements driver.Valuer
func (ls OrderLines) Value() (driver.Value, error) {
	if ls == nil {
		return "[]", nil
	}
	data, err := json.Marshal(ls)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (ls *OrderLines) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*ls = nil
		return nil
	default:
		return fmt.Errorf("unsupported order lines type %T", src)
	}
	return json.Unmarshal(data, ls)
}

// Total sums the subtotals of every line
func (ls OrderLines) Total() int64 {
	var total int64
	for _, l := range ls {
		total += l.Subtotal()
	}
	return total
}

// Order represents a customer order
type Order struct {
	ID            string     `db:"id" json:"id"`
	SessionID     *string    `db:"session_id" json:"-"`
	CustomerName  string     `db:"customer_name" json:"customerName"`
	CustomerPhone string     `db:"customer_phone" json:"customerPhone"`
	Lines         OrderLines `db:"lines" json:"lines"`
	TotalAmount   int64      `db:"total_amount" json:"totalAmount"`
	PaymentMethod *string    `db:"payment_method" json:"paymentMethod,omitempty"`
	PaymentStatus string     `db:"payment_status" json:"paymentStatus"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`

	// Joined from the most recent payment record, if any
	LatestPaymentStatus *string `db:"latest_payment_status" json:"latestPaymentStatus,omitempty"`
	TransactionID       *string `db:"transaction_id" json:"transactionId,omitempty"`
}

// IsSettled reports whether the order left the pending state
func (o *Order) IsSettled() bool {
	return o.PaymentStatus != PaymentStatusPending
}

// NewOrder carries the input of an order creation
type NewOrder struct {
	SessionID     string
	CustomerName  string
	CustomerPhone string
	Lines         OrderLines
	TotalAmount   int64
	Notes         string
}

// PaymentRecord represents one payment attempt against an order
type PaymentRecord struct {
	ID            string    `db:"id" json:"id"`
	OrderID       string    `db:"order_id" json:"orderId"`
	Method        string    `db:"method" json:"method"`
	Amount        int64     `db:"amount" json:"amount"`
	Status        string    `db:"status" json:"status"`
	TransactionID *string   `db:"transaction_id" json:"transactionId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Payment statuses, shared by orders and payment records
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// IsFinalStatus reports whether status is a valid settlement outcome
func IsFinalStatus(status string) bool {
	return status == PaymentStatusCompleted || status == PaymentStatusFailed
}

// Totals is the staff dashboard projection over a set of orders
type Totals struct {
	CompletedRevenue int64 `json:"completedRevenue"`
	CompletedCount   int   `json:"completedCount"`
	PendingCount     int   `json:"pendingCount"`
	FailedCount      int   `json:"failedCount"`
	OrderCount       int   `json:"orderCount"`
}

// StringPtr returns nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
