package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"checkout-svc/cart"
	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const msgIncompletePayload = "Payment verification payload is incomplete."

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindForUser(ctx context.Context, id string, userID int64) (*models.Order, error)
	MarkPaid(ctx context.Context, id string, userID int64, paymentID, signature string, paidAt time.Time) (*models.Order, error)
	MarkFailed(ctx context.Context, id string, userID int64) error
}

type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

type Config struct {
	KeyID     string
	KeySecret string
	Rules     cart.Rules
}

// Service owns the order/payment lifecycle: it opens provider sessions and
// verifies the signed callbacks that settle them.
type Service struct {
	store     OrderStore
	provider  Provider
	publisher EventPublisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store OrderStore, provider Provider, publisher EventPublisher, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// KeyID is the public provider key handed to the checkout widget.
func (s *Service) KeyID() string {
	return s.cfg.KeyID
}

// CreateOrder validates the cart, opens a provider session for its total and
// persists a created order. No order is stored unless the provider accepted
// the session.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req models.CreatePaymentRequest) (*models.PaymentSession, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "Payment.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	if s.cfg.KeyID == "" || s.cfg.KeySecret == "" {
		return nil, models.ErrNotConfigured
	}

	checkout, err := cart.Normalize(req, s.cfg.Rules)
	if err != nil {
		return nil, err
	}

	receipt := newReceipt(s.now())
	session, err := s.provider.CreateSession(ctx, SessionRequest{
		Amount:   checkout.AmountMinor,
		Currency: checkout.Currency,
		Receipt:  receipt,
		Notes:    map[string]string{"userId": strconv.FormatInt(userID, 10)},
	})
	if err != nil {
		span.RecordError(err)
		var perr *models.ProviderError
		if !errors.As(err, &perr) {
			err = &models.ProviderError{Message: "Failed to create payment order.", Err: err}
		}
		return nil, err
	}
	if session.ID == "" || session.Amount != checkout.AmountMinor ||
		(session.Currency != "" && !strings.EqualFold(session.Currency, checkout.Currency)) {
		err := &models.ProviderError{
			Message: "Malformed response from payment provider.",
			Err: fmt.Errorf("session %q for %d %s, requested %d %s",
				session.ID, session.Amount, session.Currency, checkout.AmountMinor, checkout.Currency),
		}
		span.RecordError(err)
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Receipt:         receipt,
		Items:           checkout.Items,
		CustomerInfo:    checkout.Customer,
		Subtotal:        checkout.Subtotal,
		Shipping:        checkout.Shipping,
		Total:           checkout.Total,
		Currency:        checkout.Currency,
		PaymentStatus:   models.PaymentStatusCreated,
		OrderStatus:     models.OrderStatusCreated,
		ProviderOrderID: session.ID,
	}
	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist order for session %s: %w", session.ID, err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.Info("Payment order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("provider_order_id", session.ID),
		zap.Int64("amount", session.Amount),
	)
	s.publish(ctx, models.EventOrderCreated, order)

	currency := session.Currency
	if currency == "" {
		currency = checkout.Currency
	}
	receiptOut := session.Receipt
	if receiptOut == "" {
		receiptOut = receipt
	}
	return &models.PaymentSession{
		ProviderKeyID:   s.cfg.KeyID,
		AppOrderID:      order.ID,
		ProviderOrderID: session.ID,
		Amount:          session.Amount,
		Currency:        currency,
		Receipt:         receiptOut,
	}, nil
}

type VerifyResult struct {
	Order *models.Order
	// AlreadyVerified is set when the order was paid before this call.
	AlreadyVerified bool
}

// VerifyPayment checks a provider callback and settles the order. Replaying a
// callback for a paid order succeeds without touching it; a bad signature
// fails the order for good.
func (s *Service) VerifyPayment(ctx context.Context, userID int64, req models.VerifyPaymentRequest) (*VerifyResult, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "Payment.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	if s.cfg.KeySecret == "" {
		return nil, models.ErrNotConfigured
	}

	req = req.Resolved()
	if req.AppOrderID == "" || req.ProviderOrderID == "" || req.ProviderPaymentID == "" || req.ProviderSignature == "" {
		return nil, models.NewValidationError(msgIncompletePayload)
	}
	span.SetAttributes(attribute.String("order.id", req.AppOrderID))

	order, err := s.store.FindForUser(ctx, req.AppOrderID, userID)
	if err != nil {
		return nil, err
	}

	if order.IsPaid() {
		return &VerifyResult{Order: order, AlreadyVerified: true}, nil
	}
	if order.ProviderOrderID != req.ProviderOrderID {
		return nil, models.ErrOrderMismatch
	}
	if order.PaymentStatus == models.PaymentStatusFailed {
		return nil, models.ErrPaymentFailed
	}

	traceID := middleware.GetTraceID(ctx)

	if !VerifySignature(s.cfg.KeySecret, req.ProviderOrderID, req.ProviderPaymentID, req.ProviderSignature) {
		span.SetAttributes(attribute.Bool("payment.signature_valid", false))
		switch err := s.store.MarkFailed(ctx, order.ID, userID); {
		case err == nil:
			order.PaymentStatus = models.PaymentStatusFailed
			s.publish(ctx, models.EventPaymentFailed, order)
		case !errors.Is(err, models.ErrStatusConflict):
			return nil, err
		}
		s.logger.Warn("Payment signature mismatch",
			zap.String("trace_id", traceID),
			zap.String("order_id", order.ID),
			zap.Int64("user_id", userID),
		)
		return nil, models.ErrInvalidSignature
	}

	span.SetAttributes(attribute.Bool("payment.signature_valid", true))
	paid, err := s.store.MarkPaid(ctx, order.ID, userID, req.ProviderPaymentID, req.ProviderSignature, s.now().UTC())
	if errors.Is(err, models.ErrStatusConflict) {
		// Another callback settled the order between our read and write.
		current, ferr := s.store.FindForUser(ctx, order.ID, userID)
		if ferr != nil {
			return nil, ferr
		}
		if current.IsPaid() {
			return &VerifyResult{Order: current, AlreadyVerified: true}, nil
		}
		return nil, models.ErrPaymentFailed
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment verified",
		zap.String("trace_id", traceID),
		zap.String("order_id", paid.ID),
		zap.Int64("user_id", userID),
		zap.String("provider_payment_id", paid.ProviderPaymentID),
	)
	s.publish(ctx, models.EventPaymentSuccess, paid)
	return &VerifyResult{Order: paid}, nil
}

// publish is best effort; the order row is the source of truth.
func (s *Service) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := models.NewPaymentEvent(eventType, order, s.now().UTC())
	if err := s.publisher.PublishPaymentEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// newReceipt is unique with high probability; the provider deduplicates on
// its own order id anyway.
func newReceipt(now time.Time) string {
	return fmt.Sprintf("FUR-%d-%d", now.UnixMilli(), 1000+rand.IntN(9000))
}
