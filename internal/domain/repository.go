package domain

import (
	"context"
	"time"
)

// CacheRepository is a key/value store with TTL used for runs and the processed-order ledger
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// SheetSource returns every row of a worksheet, header row included
type SheetSource interface {
	Rows(ctx context.Context, worksheet string) ([][]string, error)
}

// Notifier posts a plain-text message to the operations chat channel
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
