package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	CheckoutRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rejected_total",
		Help: "Total number of checkout submissions rejected before an order existed",
	}, []string{"reason"})

	PaymentPreparedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_prepared_total",
		Help: "Total number of payment intents prepared",
	}, []string{"method"})

	PaymentPrepareFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_prepare_failed_total",
		Help: "Total number of payment preparations that failed at the provider",
	}, []string{"method"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_latency_seconds",
		Help:    "Latency of payment provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Total number of orders settled",
	}, []string{"method", "outcome"})

	SettlementConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_conflicts_total",
		Help: "Total number of settlement attempts on already settled orders",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of settlement notifications that could not be delivered",
	})

	ConfirmationsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_consumed_total",
		Help: "Total number of payment confirmations consumed from the broker",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
