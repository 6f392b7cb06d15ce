package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orderdesk/backend/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("orderdesk")

// expiryHeaderLen is the size of the unix-nano expiry prefixed to every stored value
const expiryHeaderLen = 8

// BoltCache persists entries in a local bbolt file so the processed ledger survives restarts
type BoltCache struct {
	db    *bolt.DB
	clock clockwork.Clock
}

// NewBoltCache opens (or creates) the database file at path
func NewBoltCache(path string, clock clockwork.Clock) (*BoltCache, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrCacheUnavailable, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltCache{db: db, clock: clock}, nil
}

func encodeEntry(value []byte, expiration time.Time) []byte {
	buf := make([]byte, expiryHeaderLen+len(value))
	if !expiration.IsZero() {
		binary.BigEndian.PutUint64(buf[:expiryHeaderLen], uint64(expiration.UnixNano()))
	}
	copy(buf[expiryHeaderLen:], value)
	return buf
}

// decodeEntry splits a stored entry; ok is false for malformed or expired entries
func decodeEntry(raw []byte, now time.Time) (value []byte, ok bool) {
	if len(raw) < expiryHeaderLen {
		return nil, false
	}
	if exp := binary.BigEndian.Uint64(raw[:expiryHeaderLen]); exp != 0 {
		if now.After(time.Unix(0, int64(exp))) {
			return nil, false
		}
	}
	out := make([]byte, len(raw)-expiryHeaderLen)
	copy(out, raw[expiryHeaderLen:])
	return out, true
}

// Get retrieves a value
func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var found bool

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		value, found = decodeEntry(raw, c.clock.Now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	if !found {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

// Set stores a value with TTL; ttl <= 0 keeps it until deleted
func (c *BoltCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiration time.Time
	if ttl > 0 {
		expiration = c.clock.Now().Add(ttl)
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), encodeEntry(value, expiration))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key
func (c *BoltCache) Delete(ctx context.Context, key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Exists checks if a key exists and is not expired
func (c *BoltCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err == domain.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Purge deletes expired entries and returns how many were removed
func (c *BoltCache) Purge() (int, error) {
	removed := 0
	now := c.clock.Now()

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := decodeEntry(v, now); !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return removed, nil
}

// Close closes the database file
func (c *BoltCache) Close() error {
	return c.db.Close()
}
