package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexString accepts a JSON string or number. Anything else decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*s = FlexString(data)
	default:
		*s = ""
	}
	return nil
}

func (s FlexString) Trimmed() string {
	return strings.TrimSpace(string(s))
}

// CartItem is a line item as submitted by the storefront, before normalization.
type CartItem struct {
	ProductID   FlexString          `json:"productId"`
	ProductName FlexString          `json:"productName"`
	Price       decimal.NullDecimal `json:"price"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	Image       FlexString          `json:"image"`
}

type CreatePaymentRequest struct {
	CustomerInfo *CustomerInfo       `json:"customerInfo"`
	Items        []CartItem          `json:"items"`
	Subtotal     decimal.NullDecimal `json:"subtotal"`
	Shipping     decimal.NullDecimal `json:"shipping"`
	Total        decimal.NullDecimal `json:"total"`
}

// PaymentSession holds what the client needs to open the provider checkout.
type PaymentSession struct {
	ProviderKeyID   string `json:"providerKeyId"`
	AppOrderID      string `json:"appOrderId"`
	ProviderOrderID string `json:"providerOrderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Receipt         string `json:"receipt"`
}

// VerifyPaymentRequest also accepts the field names the Razorpay checkout
// widget hands back to its success handler.
type VerifyPaymentRequest struct {
	AppOrderID        string `json:"appOrderId"`
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderSignature string `json:"providerSignature"`

	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// Resolved returns a copy with the provider-native names folded into the
// generic fields and every value trimmed.
func (r VerifyPaymentRequest) Resolved() VerifyPaymentRequest {
	pick := func(primary, alias string) string {
		if v := strings.TrimSpace(primary); v != "" {
			return v
		}
		return strings.TrimSpace(alias)
	}
	return VerifyPaymentRequest{
		AppOrderID:        strings.TrimSpace(r.AppOrderID),
		ProviderOrderID:   pick(r.ProviderOrderID, r.RazorpayOrderID),
		ProviderPaymentID: pick(r.ProviderPaymentID, r.RazorpayPaymentID),
		ProviderSignature: pick(r.ProviderSignature, r.RazorpaySignature),
	}
}

const (
	EventOrderCreated   = "order_created"
	EventPaymentSuccess = "payment_success"
	EventPaymentFailed  = "payment_failed"
)

type PaymentEvent struct {
	EventType         string          `json:"event_type"`
	OrderID           string          `json:"order_id"`
	UserID            int64           `json:"user_id"`
	Receipt           string          `json:"receipt"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	ProviderOrderID   string          `json:"provider_order_id"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

func NewPaymentEvent(eventType string, order *Order, at time.Time) PaymentEvent {
	return PaymentEvent{
		EventType:         eventType,
		OrderID:           order.ID,
		UserID:            order.UserID,
		Receipt:           order.Receipt,
		Amount:            order.Total,
		Currency:          order.Currency,
		PaymentStatus:     order.PaymentStatus,
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: order.ProviderPaymentID,
		OccurredAt:        at,
	}
}
