// dto.go
package dto

import "time"

// ReconcilePaymentRequest es la forma completa del callback de pago (requiere token).
type ReconcilePaymentRequest struct {
	OrderID             string `json:"order_id" binding:"required"`
	Status              string `json:"status" binding:"required"`
	PaymentStatus       string `json:"payment_status" binding:"required"`
	PaypalTransactionID string `json:"paypal_transaction_id"`
}

// PaymentSuccessRequest es la forma simplificada del retorno exitoso de la pasarela.
type PaymentSuccessRequest struct {
	OrderID       string `json:"order_id" binding:"required"`
	PaymentStatus string `json:"payment_status" binding:"required"`
	Status        string `json:"status" binding:"required"`
}

type EstimateDTO struct {
	Date         string `json:"date"` // YYYY-MM-DD
	TimeWindow   string `json:"timeWindow"`
	DeliveryDays int    `json:"deliveryDays"`
	City         string `json:"city,omitempty"`
}

type TrackingResponse struct {
	OrderID        string      `json:"orderId"`
	TrackingNumber string      `json:"trackingNumber"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"paymentStatus"`
	Address        string      `json:"address"`
	CreatedAt      time.Time   `json:"createdAt"`
	Estimate       EstimateDTO `json:"estimate"`
	Overdue        bool        `json:"overdue"`
}

type OrderStatusResponse struct {
	OrderID             string    `json:"orderId"`
	Status              string    `json:"status"`
	PaymentStatus       string    `json:"paymentStatus"`
	TrackingNumber      string    `json:"trackingNumber,omitempty"`
	PaypalTransactionID string    `json:"paypalTransactionId,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PaymentEventMessage llega por RabbitMQ desde el servicio de pagos.
type PaymentEventMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		OrderID             string `json:"orderId"`
		Status              string `json:"status"`
		PaymentStatus       string `json:"paymentStatus"`
		PaypalTransactionID string `json:"paypalTransactionId"`
	} `json:"message"`
}

// OrderDeliveredMessage se publica cuando el simulador entrega órdenes.
type OrderDeliveredMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	Message       struct {
		OrderIDs    []string  `json:"orderIds"`
		DeliveredAt time.Time `json:"deliveredAt"`
	} `json:"message"`
}
