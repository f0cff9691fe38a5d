package payment

import "context"

// SessionRequest asks the provider to open an authorization for Amount
// minor units of Currency.
type SessionRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Session is the provider-side order a customer pays against.
type Session struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}
