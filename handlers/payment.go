package handlers

import (
	"net/http"

	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/payment"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments *payment.Service
	logger   *zap.Logger
}

func NewPaymentHandler(payments *payment.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "CreatePaymentOrder")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgAuthRequired})
		return
	}

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RecordPaymentSession("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidBody})
		return
	}

	session, err := h.payments.CreateOrder(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		middleware.RecordPaymentSession(outcome(err))
		respondError(c, h.logger, err, msgCreateFailed)
		return
	}

	span.SetAttributes(attribute.String("order.id", session.AppOrderID))
	middleware.RecordPaymentSession("created")
	c.JSON(http.StatusCreated, session)
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "VerifyPayment")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgAuthRequired})
		return
	}

	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RecordPaymentVerification("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidBody})
		return
	}

	result, err := h.payments.VerifyPayment(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		middleware.RecordPaymentVerification(outcome(err))
		respondError(c, h.logger, err, msgVerifyFailed)
		return
	}

	if result.AlreadyVerified {
		middleware.RecordPaymentVerification("already_verified")
		c.JSON(http.StatusOK, gin.H{"message": msgAlreadyVerified, "order": result.Order})
		return
	}
	middleware.RecordPaymentVerification("verified")
	c.JSON(http.StatusOK, gin.H{"message": msgVerified, "order": result.Order})
}
