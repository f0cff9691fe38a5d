package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-svc/circuitbreaker"
	"checkout-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com"

// RazorpayClient opens orders through the Razorpay Orders API.
type RazorpayClient struct {
	baseURL        string
	keyID          string
	keySecret      string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewRazorpayClient(baseURL, keyID, keySecret string, logger *zap.Logger) *RazorpayClient {
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	return &RazorpayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second,
			circuitbreaker.WithFailureFilter(isOutage)),
		logger: logger,
	}
}

// isOutage reports whether err means the provider is unhealthy rather than
// that it rejected this particular request.
func isOutage(err error) bool {
	var perr *models.ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode == 0 || perr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
	} `json:"error"`
}

func (c *RazorpayClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "Razorpay.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.currency", req.Currency),
		attribute.String("payment.receipt", req.Receipt),
	)

	var session *Session
	err := c.circuitBreaker.Execute(ctx, func() error {
		var err error
		session, err = c.createOrder(ctx, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, &models.ProviderError{Message: "Payment provider is temporarily unavailable.", Err: err}
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.provider_order_id", session.ID))
	return session, nil
}

func (c *RazorpayClient) createOrder(ctx context.Context, req SessionRequest) (*Session, error) {
	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.ProviderError{Message: "Failed to reach payment provider.", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &models.ProviderError{StatusCode: resp.StatusCode, Message: "Failed to read payment provider response.", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "Failed to create Razorpay order."
		var errBody razorpayErrorBody
		if json.Unmarshal(body, &errBody) == nil {
			if d := strings.TrimSpace(errBody.Error.Description); d != "" {
				msg = d
			} else if r := strings.TrimSpace(errBody.Error.Reason); r != "" {
				msg = r
			}
		}
		c.logger.Warn("Razorpay rejected order",
			zap.Int("status", resp.StatusCode),
			zap.String("receipt", req.Receipt),
			zap.String("reason", msg),
		)
		return nil, &models.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil || session.ID == "" {
		if err == nil {
			err = errors.New("missing order id")
		}
		return nil, &models.ProviderError{StatusCode: resp.StatusCode, Message: "Malformed response from payment provider.", Err: err}
	}
	return &session, nil
}
