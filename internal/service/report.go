package service

import (
	"context"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/store"
	"fleamarket-service/internal/util"
)

// ComputeTotals folds the orders into the dashboard counters. Only completed
// orders count toward revenue.
func ComputeTotals(orders []models.Order) models.Totals {
	var t models.Totals
	for _, o := range orders {
		t.OrderCount++
		switch o.PaymentStatus {
		case models.PaymentStatusCompleted:
			t.CompletedCount++
			t.CompletedRevenue += o.TotalAmount
		case models.PaymentStatusFailed:
			t.FailedCount++
		default:
			t.PendingCount++
		}
	}
	return t
}

// Dashboard is the staff view of the stall
type Dashboard struct {
	Totals models.Totals  `json:"totals"`
	Orders []models.Order `json:"orders"`
}

type ReportService struct {
	store store.OrderStore
}

func NewReportService(orderStore store.OrderStore) *ReportService {
	return &ReportService{store: orderStore}
}

// Dashboard recomputes the totals from the current listing on every call
func (r *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Dashboard")
	defer span.End()

	orders, err := r.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Totals: ComputeTotals(orders), Orders: orders}, nil
}
