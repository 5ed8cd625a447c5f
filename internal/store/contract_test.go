package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"fleamarket-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() models.NewOrder {
	return models.NewOrder{
		SessionID:     "session-1",
		CustomerName:  "Kim",
		CustomerPhone: "010-1234-5678",
		Lines: models.OrderLines{
			{ProductID: "A", Name: "Iced tea", UnitPrice: 3000, Quantity: 2},
			{ProductID: "B", Name: "Bracelet", UnitPrice: 5900, Quantity: 1},
		},
		TotalAmount: 11900,
		Notes:       "no ice",
	}
}

// runOrderStoreContract exercises the behavior every OrderStore must share
func runOrderStoreContract(t *testing.T, newStore func(t *testing.T) OrderStore) {
	t.Run("settles once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		orderID, err := s.CreateOrder(ctx, sampleOrder())
		require.NoError(t, err)

		order, err := s.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, int64(11900), order.TotalAmount)
		assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
		assert.Nil(t, order.PaymentMethod)
		require.NotNil(t, order.Notes)
		assert.Equal(t, "no ice", *order.Notes)

		require.NoError(t, s.TransitionPayment(ctx, orderID, "demo", models.PaymentStatusCompleted, "demo-tx"))

		err = s.TransitionPayment(ctx, orderID, "demo", models.PaymentStatusFailed, "")
		assert.True(t, errors.Is(err, models.ErrInvalidTransition), "got %v", err)

		order, err = s.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
		require.NotNil(t, order.PaymentMethod)
		assert.Equal(t, "demo", *order.PaymentMethod)
		require.NotNil(t, order.LatestPaymentStatus)
		assert.Equal(t, models.PaymentStatusCompleted, *order.LatestPaymentStatus)
		require.NotNil(t, order.TransactionID)
		assert.Equal(t, "demo-tx", *order.TransactionID)

		records, err := s.ListPaymentRecords(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(11900), records[0].Amount)
	})

	t.Run("rejects empty lines", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := sampleOrder()
		in.Lines = nil
		in.TotalAmount = 0
		_, err := s.CreateOrder(ctx, in)
		assert.True(t, errors.Is(err, models.ErrValidation))

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("rejects total mismatch", func(t *testing.T) {
		s := newStore(t)
		in := sampleOrder()
		in.TotalAmount = 10000
		_, err := s.CreateOrder(context.Background(), in)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("rejects negative and overflowing totals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		wrapped := sampleOrder()
		wrapped.Lines = models.OrderLines{
			{ProductID: "A", Name: "Iced tea", UnitPrice: 3000, Quantity: 4_000_000_000_000_000},
		}
		wrapped.TotalAmount = wrapped.Lines.Total()
		_, err := s.CreateOrder(ctx, wrapped)
		assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)

		huge := sampleOrder()
		huge.Lines = models.OrderLines{
			{ProductID: "A", Name: "Gold bar", UnitPrice: math.MaxInt64 / 2, Quantity: 1},
			{ProductID: "B", Name: "Gold bar", UnitPrice: math.MaxInt64 / 2, Quantity: 2},
		}
		huge.TotalAmount = huge.Lines.Total()
		_, err = s.CreateOrder(ctx, huge)
		assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)

		negative := sampleOrder()
		negative.Lines = models.OrderLines{{ProductID: "A", Name: "Refund", UnitPrice: 0, Quantity: 1}}
		negative.TotalAmount = -1
		_, err = s.CreateOrder(ctx, negative)
		assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("unknown order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetOrder(ctx, "FM-missing")
		assert.True(t, errors.Is(err, models.ErrNotFound))

		err = s.TransitionPayment(ctx, "FM-missing", "demo", models.PaymentStatusCompleted, "")
		assert.True(t, errors.Is(err, models.ErrNotFound))

		err = s.CreatePaymentRecord(ctx, &models.PaymentRecord{ID: "p1", OrderID: "FM-missing", Method: "demo"})
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("rejects non final status", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		orderID, err := s.CreateOrder(ctx, sampleOrder())
		require.NoError(t, err)

		err = s.TransitionPayment(ctx, orderID, "demo", models.PaymentStatusPending, "")
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("snapshot is not a live reference", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := sampleOrder()
		orderID, err := s.CreateOrder(ctx, in)
		require.NoError(t, err)
		in.Lines[0].UnitPrice = 1

		order, err := s.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), order.Lines[0].UnitPrice)
		assert.Equal(t, int64(11900), order.TotalAmount)
	})

	t.Run("concurrent creation yields distinct ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const n = 40

		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				in := sampleOrder()
				in.CustomerName = fmt.Sprintf("customer-%d", i)
				id, err := s.CreateOrder(ctx, in)
				assert.NoError(t, err)
				ids <- id
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, n)
	})

	t.Run("concurrent settlement has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		orderID, err := s.CreateOrder(ctx, sampleOrder())
		require.NoError(t, err)

		const n = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins, conflicts := 0, 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				status := models.PaymentStatusCompleted
				if i%2 == 1 {
					status = models.PaymentStatusFailed
				}
				err := s.TransitionPayment(ctx, orderID, "toss", status, "")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, models.ErrInvalidTransition):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, n-1, conflicts)

		records, err := s.ListPaymentRecords(ctx, orderID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("payment records", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		orderID, err := s.CreateOrder(ctx, sampleOrder())
		require.NoError(t, err)

		err = s.CreatePaymentRecord(ctx, &models.PaymentRecord{ID: "bad", OrderID: orderID, Method: "kakao", Amount: 1})
		assert.True(t, errors.Is(err, models.ErrValidation))

		first := &models.PaymentRecord{ID: "T100", OrderID: orderID, Method: "kakao", Amount: 11900}
		require.NoError(t, s.CreatePaymentRecord(ctx, first))
		assert.Equal(t, models.PaymentStatusPending, first.Status)

		order, err := s.GetOrder(ctx, orderID)
		require.NoError(t, err)
		require.NotNil(t, order.LatestPaymentStatus)
		assert.Equal(t, models.PaymentStatusPending, *order.LatestPaymentStatus)

		require.NoError(t, s.TransitionPayment(ctx, orderID, "kakao", models.PaymentStatusCompleted, "approval-1"))

		records, err := s.ListPaymentRecords(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "T100", records[0].ID)
		assert.Equal(t, models.PaymentStatusCompleted, records[0].Status)
		require.NotNil(t, records[0].TransactionID)
		assert.Equal(t, "approval-1", *records[0].TransactionID)

		err = s.CreatePaymentRecord(ctx, &models.PaymentRecord{ID: "T101", OrderID: orderID, Method: "kakao", Amount: 11900})
		assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("settlement closes other pending attempts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		orderID, err := s.CreateOrder(ctx, sampleOrder())
		require.NoError(t, err)

		require.NoError(t, s.CreatePaymentRecord(ctx, &models.PaymentRecord{ID: "K1", OrderID: orderID, Method: "kakao", Amount: 11900}))
		require.NoError(t, s.CreatePaymentRecord(ctx, &models.PaymentRecord{ID: "T1", OrderID: orderID, Method: "toss", Amount: 11900}))

		require.NoError(t, s.TransitionPayment(ctx, orderID, "kakao", models.PaymentStatusCompleted, "approval-2"))

		records, err := s.ListPaymentRecords(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		statuses := map[string]string{}
		for _, r := range records {
			statuses[r.ID] = r.Status
		}
		assert.Equal(t, models.PaymentStatusCompleted, statuses["K1"])
		assert.Equal(t, models.PaymentStatusFailed, statuses["T1"])

		order, err := s.GetOrder(ctx, orderID)
		require.NoError(t, err)
		require.NotNil(t, order.LatestPaymentStatus)
		assert.Equal(t, models.PaymentStatusCompleted, *order.LatestPaymentStatus)
		require.NotNil(t, order.TransactionID)
		assert.Equal(t, "approval-2", *order.TransactionID)

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		require.NotNil(t, orders[0].LatestPaymentStatus)
		assert.Equal(t, models.PaymentStatusCompleted, *orders[0].LatestPaymentStatus)
	})

	t.Run("lists newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var created []string
		for i := 0; i < 3; i++ {
			id, err := s.CreateOrder(ctx, sampleOrder())
			require.NoError(t, err)
			created = append(created, id)
		}

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, created[2], orders[0].ID)
		assert.Equal(t, created[0], orders[2].ID)
	})
}
