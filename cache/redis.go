package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// InvoiceCache stores rendered bills. Only settled orders are cached since an
// unpaid order's bill changes when it is paid.
type InvoiceCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewInvoiceCache(rdb redis.Cmdable, ttl time.Duration) *InvoiceCache {
	return &InvoiceCache{rdb: rdb, ttl: ttl}
}

func invoiceKey(orderID string) string {
	return fmt.Sprintf("invoice:%s", orderID)
}

// GetInvoice reports ok=false on a miss.
func (c *InvoiceCache) GetInvoice(ctx context.Context, orderID string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, invoiceKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *InvoiceCache) SetInvoice(ctx context.Context, orderID string, pdf []byte) error {
	return c.rdb.Set(ctx, invoiceKey(orderID), pdf, c.ttl).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
