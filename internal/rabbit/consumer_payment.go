package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/service"
)

// El broker ya autenticó al productor; el consumidor actúa como proceso interno.
const paymentConsumerName = "rabbit:payment_completed"

// PaymentReconciler lo implementa service.PaymentService.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, caller *service.Caller, in service.ReconcileInput) (*model.Order, error)
}

type PaymentConsumer struct {
	Reconciler PaymentReconciler
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

func NewPaymentConsumer(r PaymentReconciler, logger *slog.Logger, m *metrics.Collector) *PaymentConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentConsumer{Reconciler: r, Logger: logger, Metrics: m}
}

// Handle aplica un evento de pago. El error indica si conviene reencolar
// (ver Retryable); un mensaje mal formado nunca se reintenta.
func (c *PaymentConsumer) Handle(ctx context.Context, body []byte) error {
	var event dto.PaymentEventMessage
	if err := json.Unmarshal(body, &event); err != nil {
		c.Metrics.PaymentEvent("malformed")
		c.Logger.Warn("evento de pago ilegible", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}

	log := c.Logger.With(
		slog.String("correlation_id", event.CorrelationID),
		slog.String("order_id", event.Message.OrderID))
	log.Info("evento recibido: payment_completed")

	o, err := c.Reconciler.Reconcile(ctx, service.SystemCaller(paymentConsumerName), service.ReconcileInput{
		OrderID:             event.Message.OrderID,
		Status:              model.Status(event.Message.Status),
		PaymentStatus:       model.PaymentStatus(event.Message.PaymentStatus),
		PaypalTransactionID: event.Message.PaypalTransactionID,
	})
	if err != nil {
		outcome := "rejected"
		if Retryable(err) {
			outcome = "requeued"
		}
		c.Metrics.PaymentEvent(outcome)
		log.Error("actualización de estado pendiente tras pago",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
		return err
	}

	c.Metrics.PaymentEvent("applied")
	log.Info("estado de pago aplicado",
		slog.String("status", string(o.Status)),
		slog.String("payment_status", string(o.PaymentStatus)))
	return nil
}

// Retryable: solo las fallas transitorias del almacén o una carrera de estado se reencolan.
func Retryable(err error) bool {
	return errors.Is(err, model.ErrDatastoreUnavailable) || errors.Is(err, model.ErrStatusChanged)
}
