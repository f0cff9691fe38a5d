package handlers

import (
	"checkout-svc/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the health, metrics and authenticated /api endpoints.
func RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc, payments *PaymentHandler, orders *OrderHandler) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api", auth)
	api.POST("/payments/create-order", payments.CreateOrder)
	api.POST("/payments/verify", payments.VerifyPayment)
	api.GET("/orders/my", orders.ListMyOrders)
	api.GET("/orders/:orderId/bill", orders.DownloadBill)
}
