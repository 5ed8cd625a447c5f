package service

import (
	"context"
	"testing"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	orders := []models.Order{
		{ID: "a", TotalAmount: 11900, PaymentStatus: models.PaymentStatusCompleted},
		{ID: "b", TotalAmount: 3000, PaymentStatus: models.PaymentStatusCompleted},
		{ID: "c", TotalAmount: 2500, PaymentStatus: models.PaymentStatusFailed},
		{ID: "d", TotalAmount: 5900, PaymentStatus: models.PaymentStatusPending},
	}

	totals := ComputeTotals(orders)
	assert.Equal(t, models.Totals{
		CompletedRevenue: 14900,
		CompletedCount:   2,
		PendingCount:     1,
		FailedCount:      1,
		OrderCount:       4,
	}, totals)

	assert.Equal(t, models.Totals{}, ComputeTotals(nil))
}

func TestDashboard(t *testing.T) {
	s := store.NewMemoryStore()
	orders := NewOrderService(s, "123-45-67890")
	reports := NewReportService(s)
	ctx := context.Background()

	lines := models.OrderLines{{ProductID: "1", Name: "Iced tea", UnitPrice: 3000, Quantity: 1}}
	paid, err := orders.CreateOrder(ctx, &CreateOrderRequest{CustomerName: "Kim", CustomerPhone: "010", Lines: lines, TotalAmount: 3000})
	require.NoError(t, err)
	_, err = orders.CreateOrder(ctx, &CreateOrderRequest{CustomerName: "Lee", CustomerPhone: "011", Lines: lines, TotalAmount: 3000})
	require.NoError(t, err)
	require.NoError(t, s.TransitionPayment(ctx, paid.OrderID, "demo", models.PaymentStatusCompleted, ""))

	dash, err := reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, dash.Orders, 2)
	assert.Equal(t, int64(3000), dash.Totals.CompletedRevenue)
	assert.Equal(t, 1, dash.Totals.PendingCount)
}
