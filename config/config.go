package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"checkout-svc/cart"
)

// Config holds the service settings. Connection settings for Postgres,
// Redis, Kafka and Jaeger are read by their own Init functions.
type Config struct {
	Port      string
	JWTSecret string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	Currency       string
	MinAmountMinor int64
	EnforceTotals  bool

	InvoiceLocation *time.Location
	InvoiceCacheTTL time.Duration

	PaymentTopic string
}

// Load reads the environment. Malformed values are reported rather than
// silently replaced with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "5000"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RazorpayKeyID:     strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")),
		RazorpayKeySecret: strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		Currency:          strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
		PaymentTopic:      getEnv("KAFKA_PAYMENT_TOPIC", "payment_events"),
	}

	var err error
	if cfg.MinAmountMinor, err = strconv.ParseInt(getEnv("PAYMENT_MIN_AMOUNT_MINOR", "100"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_MIN_AMOUNT_MINOR: %w", err)
	}
	if cfg.EnforceTotals, err = strconv.ParseBool(getEnv("CHECKOUT_ENFORCE_TOTALS", "true")); err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_ENFORCE_TOTALS: %w", err)
	}
	if cfg.InvoiceCacheTTL, err = time.ParseDuration(getEnv("INVOICE_CACHE_TTL", "10m")); err != nil {
		return nil, fmt.Errorf("invalid INVOICE_CACHE_TTL: %w", err)
	}

	cfg.InvoiceLocation, err = time.LoadLocation(getEnv("INVOICE_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		// No tzdata on the host; bills fall back to UTC.
		cfg.InvoiceLocation = time.UTC
	}

	return cfg, nil
}

// Validate fails when the service could not serve a single checkout.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter code, got %q", c.Currency))
	}
	if c.MinAmountMinor < 1 {
		errs = append(errs, errors.New("PAYMENT_MIN_AMOUNT_MINOR must be positive"))
	}
	if c.InvoiceCacheTTL < 0 {
		errs = append(errs, errors.New("INVOICE_CACHE_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) CartRules() cart.Rules {
	rules := cart.DefaultRules()
	rules.Currency = c.Currency
	rules.MinAmountMinor = c.MinAmountMinor
	rules.EnforceTotals = c.EnforceTotals
	return rules
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
