package handlers

import (
	"errors"
	"net/http"

	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgAuthRequired     = "Authorization token is required"
	msgInvalidBody      = "Invalid request body."
	msgNotConfigured    = "Razorpay is not configured on server. Add RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET."
	msgOrderNotFound    = "Order not found."
	msgOrderMismatch    = "Order mismatch during payment verification."
	msgInvalidSignature = "Invalid payment signature."
	msgPaymentFailed    = "Payment has already failed for this order."
	msgAlreadyVerified  = "Payment already verified."
	msgVerified         = "Payment verified successfully."
	msgCreateFailed     = "Unable to create payment order."
	msgVerifyFailed     = "Payment verification failed."
	msgListFailed       = "Unable to fetch orders."
	msgBillFailed       = "Unable to generate bill."
)

// respondError answers with {"message": ...}. Errors outside the domain
// taxonomy are logged and reported with the fallback message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	_ = c.Error(err)

	var verr *models.ValidationError
	var perr *models.ProviderError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"message": verr.Message})
	case errors.Is(err, models.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgOrderNotFound})
	case errors.Is(err, models.ErrOrderMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgOrderMismatch})
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidSignature})
	case errors.Is(err, models.ErrPaymentFailed):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgPaymentFailed})
	case errors.Is(err, models.ErrNotConfigured):
		logger.Error("Payment provider credentials missing", zap.String("trace_id", middleware.GetTraceID(c.Request.Context())))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgNotConfigured})
	case errors.As(err, &perr):
		logger.Warn("Payment provider request failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Int("provider_status", perr.StatusCode),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"message": perr.Message})
	default:
		logger.Error(fallback,
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
	}
}

// outcome labels a payment metric with the error class.
func outcome(err error) string {
	var verr *models.ValidationError
	var perr *models.ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "rejected"
	case errors.Is(err, models.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, models.ErrOrderMismatch):
		return "mismatch"
	case errors.Is(err, models.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, models.ErrPaymentFailed):
		return "already_failed"
	case errors.As(err, &perr):
		return "provider_error"
	default:
		return "error"
	}
}
