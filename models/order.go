package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Image       string          `json:"image"`
}

// Amount is the line total, price × quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(li.Quantity))
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Order is one checkout attempt and its payment/fulfillment lifecycle.
type Order struct {
	ID                string          `json:"id"`
	UserID            int64           `json:"userId"`
	Receipt           string          `json:"receipt"`
	Items             []LineItem      `json:"items"`
	CustomerInfo      CustomerInfo    `json:"customerInfo"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	OrderStatus       OrderStatus     `json:"orderStatus"`
	ProviderOrderID   string          `json:"providerOrderId"`
	ProviderPaymentID string          `json:"providerPaymentId"`
	ProviderSignature string          `json:"providerSignature"`
	PaidAt            *time.Time      `json:"paidAt"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}
