// models.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status es el estado logístico de la orden.
type Status string

const (
	StatusConfirmed      Status = "Confirmado"
	StatusProcessing     Status = "Procesando"
	StatusPreparing      Status = "Preparando"
	StatusInTransit      Status = "En tránsito"
	StatusOutForDelivery Status = "Fuera para entrega"
	StatusDelivered      Status = "Entregado"
	StatusCancelled      Status = "Cancelado"
)

// PaymentStatus es un eje independiente del estado logístico.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Pendiente"
	PaymentPaid   PaymentStatus = "Pagado"
)

// TerminalStatuses nunca son seleccionados por procesos automáticos.
var TerminalStatuses = []Status{StatusDelivered, StatusCancelled}

type Order struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	Status              Status          `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	TrackingNumber      string          `json:"trackingNumber,omitempty"` // vacío = sin asignar
	Address             string          `json:"address"`
	Total               decimal.Decimal `json:"total"`
	Items               []OrderItem     `json:"items"`
	PaymentMethod       string          `json:"paymentMethod"`
	PaypalTransactionID string          `json:"paypalTransactionId,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Size     string          `json:"size,omitempty"`
}

// HasTracking indica si la orden ya tiene número de guía.
func (o *Order) HasTracking() bool {
	return o.TrackingNumber != ""
}

// PaymentUpdate agrupa los campos que la conciliación escribe en una sola operación.
type PaymentUpdate struct {
	Status              Status
	PaymentStatus       PaymentStatus
	PaypalTransactionID string
}

// StaleFilter selecciona órdenes no terminales creadas antes de CreatedBefore.
type StaleFilter struct {
	CreatedBefore time.Time
}
