// Package cart turns an untrusted storefront cart into a checkout the
// payment layer can charge.
package cart

import (
	"fmt"
	"strings"

	"checkout-svc/models"

	"github.com/shopspring/decimal"
)

const (
	msgCustomerDetails = "Complete customer details are required."
	msgNoItems         = "At least one valid cart item is required."
	msgInvalidAmount   = "Invalid order amount."
	msgTotalsMismatch  = "Order totals do not match cart items."

	// MaxItemQuantity bounds a single line item.
	MaxItemQuantity = 10000
)

// maxAmount is the largest value the orders table's DECIMAL(12,2) columns hold.
var maxAmount = decimal.New(999999999999, -2)

type Rules struct {
	Currency       string
	MinorPerMajor  int64
	MinAmountMinor int64
	EnforceTotals  bool
}

func DefaultRules() Rules {
	return Rules{
		Currency:       "INR",
		MinorPerMajor:  100,
		MinAmountMinor: 100,
		EnforceTotals:  true,
	}
}

// Checkout is a cart that passed validation.
type Checkout struct {
	Items       []models.LineItem
	Customer    models.CustomerInfo
	Subtotal    decimal.Decimal
	Shipping    decimal.Decimal
	Total       decimal.Decimal
	AmountMinor int64
	Currency    string
}

// Normalize validates req and returns the charge it describes, or a
// *models.ValidationError explaining the first problem found.
func Normalize(req models.CreatePaymentRequest, rules Rules) (*Checkout, error) {
	customer, ok := normalizeCustomer(req.CustomerInfo)
	if !ok {
		return nil, models.NewValidationError(msgCustomerDetails)
	}

	items := NormalizeItems(req.Items)
	if len(items) == 0 {
		return nil, models.NewValidationError(msgNoItems)
	}

	if !req.Subtotal.Valid || !req.Shipping.Valid || !req.Total.Valid {
		return nil, models.NewValidationError(msgInvalidAmount)
	}
	subtotal, shipping, total := req.Subtotal.Decimal, req.Shipping.Decimal, req.Total.Decimal
	if subtotal.IsNegative() || shipping.IsNegative() || !total.IsPositive() {
		return nil, models.NewValidationError(msgInvalidAmount)
	}
	if subtotal.GreaterThan(maxAmount) || shipping.GreaterThan(maxAmount) || total.GreaterThan(maxAmount) {
		return nil, models.NewValidationError(msgInvalidAmount)
	}

	if rules.EnforceTotals {
		var sum decimal.Decimal
		for _, it := range items {
			sum = sum.Add(it.Amount())
		}
		if !subtotal.Round(2).Equal(sum.Round(2)) ||
			!total.Round(2).Equal(subtotal.Add(shipping).Round(2)) {
			return nil, models.NewValidationError(msgTotalsMismatch)
		}
	}

	minor := total.Mul(decimal.NewFromInt(rules.MinorPerMajor)).Round(0)
	if !minor.BigInt().IsInt64() {
		return nil, models.NewValidationError(msgInvalidAmount)
	}
	amountMinor := minor.IntPart()
	if amountMinor < rules.MinAmountMinor {
		minMajor := decimal.New(rules.MinAmountMinor, 0).Div(decimal.NewFromInt(rules.MinorPerMajor))
		return nil, models.NewValidationError(
			fmt.Sprintf("Minimum payable amount is %s %s.", rules.Currency, minMajor.String()))
	}

	return &Checkout{
		Items:       items,
		Customer:    customer,
		Subtotal:    subtotal,
		Shipping:    shipping,
		Total:       total,
		AmountMinor: amountMinor,
		Currency:    rules.Currency,
	}, nil
}

// NormalizeItems drops items without an id or name, with a quantity that is
// fractional or outside 1..MaxItemQuantity, or with a price that is negative
// or beyond what an order can total. Missing numbers count as zero.
func NormalizeItems(raw []models.CartItem) []models.LineItem {
	items := make([]models.LineItem, 0, len(raw))
	for _, r := range raw {
		id, name := r.ProductID.Trimmed(), r.ProductName.Trimmed()
		if id == "" || name == "" {
			continue
		}
		price := r.Price.Decimal
		qty := r.Quantity.Decimal
		if !r.Price.Valid {
			price = decimal.Zero
		}
		if !r.Quantity.Valid {
			qty = decimal.Zero
		}
		if price.IsNegative() || price.GreaterThan(maxAmount) {
			continue
		}
		if !qty.IsPositive() || !qty.IsInteger() || qty.GreaterThan(decimal.NewFromInt(MaxItemQuantity)) {
			continue
		}
		items = append(items, models.LineItem{
			ProductID:   id,
			ProductName: name,
			Price:       price,
			Quantity:    qty.IntPart(),
			Image:       r.Image.Trimmed(),
		})
	}
	return items
}

func normalizeCustomer(c *models.CustomerInfo) (models.CustomerInfo, bool) {
	if c == nil {
		return models.CustomerInfo{}, false
	}
	out := models.CustomerInfo{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
	if out.Name == "" || out.Email == "" || out.Phone == "" || out.Address == "" {
		return models.CustomerInfo{}, false
	}
	return out, true
}
