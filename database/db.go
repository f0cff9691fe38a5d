package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	user_id BIGINT NOT NULL,
	receipt VARCHAR(64) NOT NULL,
	items JSONB NOT NULL DEFAULT '[]',
	customer_name VARCHAR(255) NOT NULL,
	customer_email VARCHAR(255) NOT NULL,
	customer_phone VARCHAR(64) NOT NULL,
	customer_address TEXT NOT NULL,
	subtotal DECIMAL(12, 2) NOT NULL CHECK (subtotal >= 0),
	shipping DECIMAL(12, 2) NOT NULL DEFAULT 0 CHECK (shipping >= 0),
	total DECIMAL(12, 2) NOT NULL CHECK (total >= 0),
	currency CHAR(3) NOT NULL DEFAULT 'INR',
	payment_status VARCHAR(20) NOT NULL DEFAULT 'created',
	order_status VARCHAR(20) NOT NULL DEFAULT 'created',
	provider_order_id VARCHAR(64) NOT NULL DEFAULT '',
	provider_payment_id VARCHAR(64) NOT NULL DEFAULT '',
	provider_signature VARCHAR(128) NOT NULL DEFAULT '',
	paid_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_provider_order ON orders (provider_order_id);
CREATE INDEX IF NOT EXISTS idx_orders_receipt ON orders (receipt);
`

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "checkoutdb")
	sslmode := getEnv("DB_SSLMODE", "disable")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database connection established", zap.String("host", host), zap.String("db", dbname))
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
