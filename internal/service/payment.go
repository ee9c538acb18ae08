package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/model"
)

const reconcileRetries = 3

var validPaymentStates = map[model.PaymentStatus]bool{
	model.PaymentUnpaid: true,
	model.PaymentPaid:   true,
}

// ReconcileInput es el resultado que informa la pasarela de pago.
type ReconcileInput struct {
	OrderID             string
	Status              model.Status
	PaymentStatus       model.PaymentStatus
	PaypalTransactionID string
}

// PaymentService aplica a la orden el resultado de un pago ya capturado.
// Un error aquí significa que la actualización de estado quedó pendiente,
// nunca que el pago falló.
type PaymentService struct {
	repo    OrderRepository
	metrics *metrics.Collector
}

func NewPaymentService(r OrderRepository, m *metrics.Collector) *PaymentService {
	return &PaymentService{repo: r, metrics: m}
}

// Reconcile actualiza estado, estado de pago y referencia de transacción en una
// sola escritura. Repetir la misma llamada deja la orden igual y no es error.
func (s *PaymentService) Reconcile(ctx context.Context, caller *Caller, in ReconcileInput) (*model.Order, error) {
	ord, err := s.reconcile(ctx, caller, in)
	switch {
	case err == nil:
		s.metrics.Reconciled("ok")
	case errors.Is(err, model.ErrDatastoreUnavailable):
		s.metrics.Reconciled("datastore_error")
	default:
		s.metrics.Reconciled("rejected")
	}
	return ord, err
}

// ConfirmPayment es la forma simplificada del retorno exitoso de la pasarela,
// sin referencia de transacción.
func (s *PaymentService) ConfirmPayment(ctx context.Context, caller *Caller, orderID string, status model.Status, paymentStatus model.PaymentStatus) (*model.Order, error) {
	return s.Reconcile(ctx, caller, ReconcileInput{
		OrderID:       orderID,
		Status:        status,
		PaymentStatus: paymentStatus,
	})
}

func (s *PaymentService) reconcile(ctx context.Context, caller *Caller, in ReconcileInput) (*model.Order, error) {
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id es obligatorio", ErrInvalidInput)
	}
	if !IsValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: estado desconocido %q", ErrInvalidTransition, in.Status)
	}
	if !validPaymentStates[in.PaymentStatus] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, in.PaymentStatus)
	}

	for attempt := 0; attempt < reconcileRetries; attempt++ {
		ord, err := s.repo.FindByID(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		if !caller.CanModify(ord) {
			return nil, ErrForbidden
		}

		upd, err := planPayment(ord, in)
		if err != nil {
			return nil, err
		}
		if upd.Status == ord.Status && upd.PaymentStatus == ord.PaymentStatus && upd.PaypalTransactionID == ord.PaypalTransactionID {
			// Nada que cambiar: llamada repetida.
			return ord, nil
		}

		err = s.repo.ApplyPayment(ctx, ord.ID, ord.Status, upd)
		if errors.Is(err, model.ErrStatusChanged) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ord.Status = upd.Status
		ord.PaymentStatus = upd.PaymentStatus
		ord.PaypalTransactionID = upd.PaypalTransactionID
		return ord, nil
	}
	return nil, fmt.Errorf("orden %s: %w", in.OrderID, model.ErrStatusChanged)
}

// planPayment calcula los valores finales sin retroceder estado ni pago.
func planPayment(ord *model.Order, in ReconcileInput) (model.PaymentUpdate, error) {
	status, err := Resolve(ord.Status, in.Status)
	if err != nil {
		return model.PaymentUpdate{}, err
	}

	payment := in.PaymentStatus
	if ord.PaymentStatus == model.PaymentPaid {
		payment = model.PaymentPaid
	}

	txn := ord.PaypalTransactionID
	if in.PaypalTransactionID != "" {
		if txn != "" && txn != in.PaypalTransactionID {
			return model.PaymentUpdate{}, fmt.Errorf("%w: orden %s", ErrPaymentConflict, ord.ID)
		}
		txn = in.PaypalTransactionID
	}

	return model.PaymentUpdate{
		Status:              status,
		PaymentStatus:       payment,
		PaypalTransactionID: txn,
	}, nil
}
