package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"order-tracking-service/internal/dto"
)

const OrderDeliveredExchange = "order_delivered"

// publishChannel es la parte de *amqp091.Channel que usa el publicador.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// DeliveredPublisher publica las órdenes que el simulador marcó como entregadas.
type DeliveredPublisher struct {
	ch publishChannel
}

func NewDeliveredPublisher(ch publishChannel) *DeliveredPublisher {
	return &DeliveredPublisher{ch: ch}
}

func (p *DeliveredPublisher) PublishDelivered(ctx context.Context, orderIDs []string, deliveredAt time.Time) error {
	var msg dto.OrderDeliveredMessage
	msg.CorrelationID = uuid.NewString()
	msg.Exchange = OrderDeliveredExchange
	msg.Message.OrderIDs = orderIDs
	msg.Message.DeliveredAt = deliveredAt.UTC()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, OrderDeliveredExchange, "", false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationID,
		DeliveryMode:  amqp091.Persistent,
		Timestamp:     deliveredAt.UTC(),
		Body:          body,
	})
}
