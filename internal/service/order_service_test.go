package service

import (
	"context"
	"errors"
	"testing"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewOrderService(s, "123-45-67890")
	ctx := context.Background()

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName:  "  Kim ",
		CustomerPhone: "010-1234-5678",
		Lines: models.OrderLines{
			{ProductID: "1", Name: "Iced tea", UnitPrice: 3000, Quantity: 2},
			{ProductID: "4", Name: "Doll", UnitPrice: 5900, Quantity: 1},
		},
		TotalAmount: 11900,
	})
	require.NoError(t, err)
	assert.Equal(t, "123-45-67890", resp.BusinessNumber)
	assert.NotEmpty(t, resp.OrderID)

	detail, err := svc.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Kim", detail.CustomerName)
	assert.Equal(t, models.PaymentStatusPending, detail.PaymentStatus)
	assert.Empty(t, detail.Payments)
}

func TestCreateOrderValidation(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewOrderService(s, "123-45-67890")
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{CustomerName: "Kim", CustomerPhone: " "})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.CreateOrder(ctx, &CreateOrderRequest{CustomerName: "Kim", CustomerPhone: "010"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.GetOrder(ctx, "FM-missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
