package controller

import (
	"order-tracking-service/internal/metrics"
	"order-tracking-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes monta las rutas públicas, autenticadas y de administración.
func RegisterRoutes(r *gin.Engine, ctl *OrderController, auth middleware.TokenValidator, m *metrics.Collector) {
	// Rutas públicas
	r.GET("/tracking/:code", ctl.Track)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// Rutas protegidas (requieren token)
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(auth))

	authed.GET("/orders", ctl.SearchOrders)
	authed.GET("/orders/:orderId", ctl.GetOrder)
	authed.GET("/orders/:orderId/tracking", ctl.GetOrderTracking)
	authed.POST("/payments/reconcile", ctl.ReconcilePayment)
	authed.POST("/payments/success", ctl.PaymentSuccess)

	// Rutas admin
	admin := authed.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.POST("/simulator/run", ctl.RunSimulation)
}
