package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/middleware"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/service"
	"order-tracking-service/internal/simulator"

	"github.com/gin-gonic/gin"
)

// El pago ya se capturó aguas arriba: un fallo aquí nunca se presenta como pago fallido.
const statusUpdatePendingMsg = "pago recibido; la actualización del estado de la orden quedó pendiente"

// PassRunner lo implementa simulator.Simulator.
type PassRunner interface {
	RunOnce(ctx context.Context) (simulator.PassResult, error)
}

type OrderController struct {
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Simulator PassRunner
	Logger    *slog.Logger
}

func NewOrderController(orders *service.OrderService, payments *service.PaymentService, sim PassRunner, logger *slog.Logger) *OrderController {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderController{Orders: orders, Payments: payments, Simulator: sim, Logger: logger}
}

// GET /tracking/:code - No requiere token
func (ctl *OrderController) Track(c *gin.Context) {
	view, err := ctl.Orders.Track(c.Request.Context(), c.Param("code"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTrackingResponse(view))
}

// GET /orders/:orderId - requiere token
func (ctl *OrderController) GetOrder(c *gin.Context) {
	o, err := ctl.Orders.GetByID(c.Request.Context(), middleware.CallerFrom(c), c.Param("orderId"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /orders/:orderId/tracking - asigna la guía en la primera consulta
func (ctl *OrderController) GetOrderTracking(c *gin.Context) {
	view, err := ctl.Orders.TrackingForOrder(c.Request.Context(), middleware.CallerFrom(c), c.Param("orderId"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTrackingResponse(view))
}

// GET /orders?q=fragmento
func (ctl *OrderController) SearchOrders(c *gin.Context) {
	orders, err := ctl.Orders.SearchByID(c.Request.Context(), middleware.CallerFrom(c), c.Query("q"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	if orders == nil {
		orders = []*model.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// POST /payments/reconcile - requiere token
func (ctl *OrderController) ReconcilePayment(c *gin.Context) {
	var req dto.ReconcilePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := ctl.Payments.Reconcile(c.Request.Context(), middleware.CallerFrom(c), service.ReconcileInput{
		OrderID:             req.OrderID,
		Status:              model.Status(req.Status),
		PaymentStatus:       model.PaymentStatus(req.PaymentStatus),
		PaypalTransactionID: req.PaypalTransactionID,
	})
	if err != nil {
		ctl.respondPaymentError(c, req.OrderID, err)
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(o))
}

// POST /payments/success - retorno simplificado de la pasarela
func (ctl *OrderController) PaymentSuccess(c *gin.Context) {
	var req dto.PaymentSuccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := ctl.Payments.ConfirmPayment(
		c.Request.Context(),
		middleware.CallerFrom(c),
		req.OrderID,
		model.Status(req.Status),
		model.PaymentStatus(req.PaymentStatus),
	)
	if err != nil {
		ctl.respondPaymentError(c, req.OrderID, err)
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(o))
}

// POST /admin/simulator/run - admin only
func (ctl *OrderController) RunSimulation(c *gin.Context) {
	if ctl.Simulator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulator disabled"})
		return
	}
	res, err := ctl.Simulator.RunOnce(c.Request.Context())
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctl *OrderController) respondPaymentError(c *gin.Context, orderID string, err error) {
	ctl.Logger.Error("conciliación de pago fallida",
		slog.String("order_id", orderID),
		slog.String("error", err.Error()))
	c.JSON(statusFor(err), gin.H{
		"error":           statusUpdatePendingMsg,
		"detail":          err.Error(),
		"paymentCaptured": true,
	})
}

func (ctl *OrderController) respondError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusNotFound:
		msg = "paquete u orden no encontrada"
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		ctl.Logger.Error("error atendiendo solicitud",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.JSON(code, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidTrackingCode),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidPaymentStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFinalState),
		errors.Is(err, service.ErrPaymentConflict),
		errors.Is(err, model.ErrStatusChanged),
		errors.Is(err, simulator.ErrPassInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrDatastoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toTrackingResponse(v *service.TrackingView) dto.TrackingResponse {
	return dto.TrackingResponse{
		OrderID:        v.Order.ID,
		TrackingNumber: v.Order.TrackingNumber,
		Status:         string(v.Order.Status),
		PaymentStatus:  string(v.Order.PaymentStatus),
		Address:        v.Order.Address,
		CreatedAt:      v.Order.CreatedAt,
		Estimate: dto.EstimateDTO{
			Date:         v.Estimate.Date.Format("2006-01-02"),
			TimeWindow:   v.Estimate.TimeWindow,
			DeliveryDays: v.Estimate.DeliveryDays,
			City:         v.Estimate.City,
		},
		Overdue: v.Overdue,
	}
}

func toStatusResponse(o *model.Order) dto.OrderStatusResponse {
	return dto.OrderStatusResponse{
		OrderID:             o.ID,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		TrackingNumber:      o.TrackingNumber,
		PaypalTransactionID: o.PaypalTransactionID,
		UpdatedAt:           o.UpdatedAt,
	}
}
