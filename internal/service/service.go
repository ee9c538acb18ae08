package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/facebookgo/clock"

	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/model"
)

// Interfaz que debe implementar repository
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByTrackingNumber(ctx context.Context, code string) (*model.Order, error)
	FindByIDFragment(ctx context.Context, fragment, userID string) ([]*model.Order, error)
	TrackingNumberExists(ctx context.Context, code string) (bool, error)
	TrackingNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
	AssignTrackingNumber(ctx context.Context, orderID, code string) (string, error)
	ApplyPayment(ctx context.Context, orderID string, expected model.Status, upd model.PaymentUpdate) error
	FindStale(ctx context.Context, f model.StaleFilter) ([]*model.Order, error)
	MarkDelivered(ctx context.Context, orderIDs []string) ([]string, error)
}

// Errores de negocio exportados (los usa el controller)
var (
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("se requiere una sesión autenticada")
	ErrInvalidInput         = errors.New("datos de entrada inválidos")
	ErrInvalidTransition    = errors.New("transición de estado inválida")
	ErrFinalState           = errors.New("no se puede cambiar el estado de una orden en estado final")
	ErrInvalidTrackingCode  = errors.New("formato de número de guía inválido")
	ErrInvalidPaymentStatus = errors.New("estado de pago inválido")
	ErrPaymentConflict      = errors.New("la orden ya fue pagada con otra transacción")
	ErrTrackingExhausted    = errors.New("no quedan números de guía libres para la orden")
)

// TrackingView es lo que ve el cliente al consultar su envío.
type TrackingView struct {
	Order    *model.Order `json:"order"`
	Estimate Estimate     `json:"estimate"`
	Overdue  bool         `json:"overdue"`
}

type OrderService struct {
	repo     OrderRepository
	tracking *TrackingService
	clock    clock.Clock
	metrics  *metrics.Collector
	// zona en la que se calculan fechas estimadas
	loc *time.Location
}

func NewOrderService(r OrderRepository, t *TrackingService, clk clock.Clock, m *metrics.Collector, loc *time.Location) *OrderService {
	if clk == nil {
		clk = clock.New()
	}
	return &OrderService{repo: r, tracking: t, clock: clk, metrics: m, loc: loc}
}

// GetByID devuelve la orden si el actor es su dueño o administrador.
func (s *OrderService) GetByID(ctx context.Context, caller *Caller, orderID string) (*model.Order, error) {
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	ord, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(ord) {
		return nil, ErrForbidden
	}
	return ord, nil
}

// Track busca un envío por número de guía. El formato se valida antes de consultar.
func (s *OrderService) Track(ctx context.Context, rawCode string) (*TrackingView, error) {
	code, err := NormalizeTrackingCode(rawCode)
	if err != nil {
		return nil, err
	}
	ord, err := s.repo.FindByTrackingNumber(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.view(ord), nil
}

// TrackingForOrder asigna el número de guía la primera vez que se consulta.
func (s *OrderService) TrackingForOrder(ctx context.Context, caller *Caller, orderID string) (*TrackingView, error) {
	ord, err := s.GetByID(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if !ord.HasTracking() {
		if _, err := s.tracking.Assign(ctx, ord); err != nil {
			return nil, fmt.Errorf("asignando número de guía a %s: %w", ord.ID, err)
		}
	}
	return s.view(ord), nil
}

// SearchByID busca por fragmento de id (sin distinguir mayúsculas).
// Un usuario sin permisos de admin solo ve sus propias órdenes.
func (s *OrderService) SearchByID(ctx context.Context, caller *Caller, fragment string) ([]*model.Order, error) {
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("%w: el fragmento de búsqueda está vacío", ErrInvalidInput)
	}
	userID := caller.ID
	if caller.IsAdmin() {
		userID = ""
	}
	return s.repo.FindByIDFragment(ctx, fragment, userID)
}

func (s *OrderService) view(ord *model.Order) *TrackingView {
	est := EstimateDelivery(ord, s.loc)
	return &TrackingView{
		Order:    ord,
		Estimate: est,
		Overdue:  IsOverdue(ord, est, s.clock.Now()),
	}
}
