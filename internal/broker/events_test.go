package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fleamarket-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	key   string
	event interface{}
	err   error
}

func (w *captureWriter) PublishEvent(_ context.Context, key string, event interface{}) error {
	w.key = key
	w.event = event
	return w.err
}

func settledOrder() *models.Order {
	method := "kakao"
	return &models.Order{
		ID:            "FM01",
		CustomerName:  "Kim",
		CustomerPhone: "010-1234-5678",
		Lines: models.OrderLines{
			{ProductID: "1", Name: "Iced tea", UnitPrice: 3000, Quantity: 2},
		},
		TotalAmount:   6000,
		PaymentMethod: &method,
		PaymentStatus: models.PaymentStatusCompleted,
	}
}

func TestNotifySettled(t *testing.T) {
	w := &captureWriter{}
	p := NewEventPublisher(w)

	require.NoError(t, p.NotifySettled(context.Background(), settledOrder()))
	assert.Equal(t, "order-FM01", w.key)

	event, ok := w.event.(*models.OrderSettledEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventTypeOrderSettled, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "kakao", event.PaymentMethod)
	assert.Equal(t, models.PaymentStatusCompleted, event.Outcome)
	require.Len(t, event.Items, 1)
	assert.Equal(t, 2, event.Items[0].Quantity)
}

func TestNotifySettledPropagatesWriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("leader not available")}
	p := NewEventPublisher(w)

	assert.Error(t, p.NotifySettled(context.Background(), settledOrder()))
}

func TestHandleMessageRoutesConfirmations(t *testing.T) {
	h := NewEventHandler()
	var got *models.PaymentConfirmedEvent
	h.OnPaymentConfirmed(func(_ context.Context, e *models.PaymentConfirmedEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(map[string]string{
		"event_id":       "e1",
		"event_type":     models.EventTypePaymentConfirmed,
		"order_id":       "FM01",
		"method":         "toss",
		"outcome":        "completed",
		"transaction_id": "pk_123",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "FM01", got.OrderID)
	assert.Equal(t, "toss", got.Method)
	assert.Equal(t, "pk_123", got.TransactionID)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	h := NewEventHandler()
	called := false
	h.OnPaymentConfirmed(func(context.Context, *models.PaymentConfirmedEvent) error {
		called = true
		return nil
	})

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"ORDER_SETTLED"}`)})
	assert.NoError(t, err)
	assert.False(t, called)

	err = h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)})
	assert.Error(t, err)
}
