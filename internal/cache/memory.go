package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// MemoryCache is an in-process Cache with TTL support, used in tests and
// when the server runs with the memory store and no REDIS_URL.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// SetClock replaces the clock used for expiry.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Ping(ctx context.Context) error { return ctx.Err() }

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
	return nil
}

func (c *MemoryCache) setLocked(key string, value []byte, ttl time.Duration) {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if item.expired(c.now()) {
		delete(c.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *MemoryCache) SetDocumentStatus(ctx context.Context, status models.StatusSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode document status: %w", err)
	}
	return c.Set(ctx, DocumentStatusKey(status.ID), data, ttl)
}

func (c *MemoryCache) GetDocumentStatus(ctx context.Context, docID uuid.UUID) (models.StatusSnapshot, bool, error) {
	data, found, err := c.Get(ctx, DocumentStatusKey(docID))
	if err != nil || !found {
		return models.StatusSnapshot{}, false, err
	}
	var status models.StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return models.StatusSnapshot{}, false, fmt.Errorf("decode document status: %w", err)
	}
	return status, true, nil
}

func (c *MemoryCache) SaveDraftSet(ctx context.Context, set *models.DraftSet, ttl time.Duration) error {
	data, err := encodeDraftSet(set)
	if err != nil {
		return fmt.Errorf("encode draft set: %w", err)
	}
	return c.Set(ctx, DraftSessionKey(set.SessionID), data, ttl)
}

func (c *MemoryCache) GetDraftSet(ctx context.Context, sessionID uuid.UUID) (*models.DraftSet, bool, error) {
	data, found, err := c.Get(ctx, DraftSessionKey(sessionID))
	if err != nil || !found {
		return nil, false, err
	}
	set, err := decodeDraftSet(data)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (c *MemoryCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || item.expired(c.now()) {
		c.setLocked(key, []byte("1"), expiry)
		return 1, nil
	}
	n, err := strconv.ParseInt(string(item.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("incr %s: value is not an integer", key)
	}
	n++
	item.value = []byte(strconv.FormatInt(n, 10))
	c.items[key] = item
	return n, nil
}
