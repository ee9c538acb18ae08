// setup.go
package rabbit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

const (
	PaymentCompletedExchange = "payment_completed"
	paymentsQueue            = "order_tracking_payments" // cola exclusiva para este micro
)

// SetupConsumers declara la cola de pagos, la enlaza al exchange fanout y
// procesa los mensajes hasta que ctx se cancele o el canal se cierre.
func SetupConsumers(ctx context.Context, ch *amqp091.Channel, consumer *PaymentConsumer, logger *slog.Logger) error {
	// 1. Declarar exchange y queue
	if err := ch.ExchangeDeclare(PaymentCompletedExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declarando exchange %s: %w", PaymentCompletedExchange, err)
	}
	q, err := ch.QueueDeclare(paymentsQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declarando queue: %w", err)
	}

	// 2. Bindear al exchange fanout
	// fanout ignora routing key
	if err := ch.QueueBind(q.Name, "", PaymentCompletedExchange, false, nil); err != nil {
		return fmt.Errorf("binding exchange: %w", err)
	}

	// 3. Consumir con ack manual
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumiendo queue: %w", err)
	}

	go func() {
		for m := range msgs {
			handleDelivery(ctx, consumer, m, logger)
		}
		logger.Warn("canal de pagos cerrado, consumidor detenido")
	}()

	logger.Info("suscrito a exchange", slog.String("exchange", PaymentCompletedExchange))
	return nil
}

func handleDelivery(ctx context.Context, consumer *PaymentConsumer, m amqp091.Delivery, logger *slog.Logger) {
	err := consumer.Handle(ctx, m.Body)
	switch {
	case err == nil:
		err = m.Ack(false)
	case Retryable(err):
		err = m.Nack(false, true)
	default:
		// Error permanente: reintentar no cambia el resultado.
		err = m.Nack(false, false)
	}
	if err != nil {
		logger.Error("no se pudo confirmar el mensaje", slog.String("error", err.Error()))
	}
}

// SetupPublisher declara el exchange de entregas y devuelve el publicador.
func SetupPublisher(ch *amqp091.Channel) (*DeliveredPublisher, error) {
	if err := ch.ExchangeDeclare(OrderDeliveredExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declarando exchange %s: %w", OrderDeliveredExchange, err)
	}
	return NewDeliveredPublisher(ch), nil
}
