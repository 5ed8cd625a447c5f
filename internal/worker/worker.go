package worker

import (
	"context"
	"errors"

	"fleamarket-service/internal/broker"
	"fleamarket-service/internal/models"
	"fleamarket-service/internal/payment"
	"fleamarket-service/internal/service"
	"fleamarket-service/internal/util"

	"go.uber.org/zap"
)

// Completer settles orders; implemented by service.CheckoutService
type Completer interface {
	Complete(ctx context.Context, settlement payment.Settlement) (*service.CompletionResult, error)
}

// ConfirmationWorker applies provider payment confirmations from Kafka
type ConfirmationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	checkout     Completer
	logger       *zap.Logger
}

// NewConfirmationWorker creates a new confirmation worker
func NewConfirmationWorker(consumer *broker.Consumer, checkout Completer) *ConfirmationWorker {
	w := &ConfirmationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		checkout:     checkout,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnPaymentConfirmed(w.HandlePaymentConfirmed)
	return w
}

// Start starts the worker
func (w *ConfirmationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting confirmation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ConfirmationWorker) Stop() error {
	w.logger.Info("Stopping confirmation worker")
	return w.consumer.Close()
}

// HandlePaymentConfirmed settles the order named by the event. Duplicate
// and unprocessable confirmations are acknowledged so they are not
// redelivered. Persistence failures are returned and the consumer retries
// the message before committing past it.
func (w *ConfirmationWorker) HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	_, err := w.checkout.Complete(ctx, payment.Settlement{
		OrderID:       event.OrderID,
		Method:        event.Method,
		Outcome:       event.Outcome,
		TransactionID: event.TransactionID,
	})

	switch {
	case err == nil:
		util.ConfirmationsConsumedTotal.WithLabelValues("settled").Inc()
		return nil
	case errors.Is(err, models.ErrInvalidTransition):
		util.ConfirmationsConsumedTotal.WithLabelValues("duplicate").Inc()
		w.logger.Info("Confirmation for settled order skipped",
			zap.String("order_id", event.OrderID),
			zap.String("event_id", event.EventID))
		return nil
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrValidation):
		util.ConfirmationsConsumedTotal.WithLabelValues("rejected").Inc()
		w.logger.Warn("Confirmation rejected",
			zap.String("order_id", event.OrderID),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return nil
	default:
		util.ConfirmationsConsumedTotal.WithLabelValues("error").Inc()
		return err
	}
}
