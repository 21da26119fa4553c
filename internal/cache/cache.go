package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contractlens/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetDocumentStatus(ctx context.Context, status models.StatusSnapshot, ttl time.Duration) error
	GetDocumentStatus(ctx context.Context, docID uuid.UUID) (models.StatusSnapshot, bool, error)
	SaveDraftSet(ctx context.Context, set *models.DraftSet, ttl time.Duration) error
	GetDraftSet(ctx context.Context, sessionID uuid.UUID) (*models.DraftSet, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// draftEntry is the stored form of a DraftSet. The owner is kept alongside
// the set because DraftSet hides it from API responses.
type draftEntry struct {
	SessionID uuid.UUID      `json:"session_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Drafts    []models.Draft `json:"drafts"`
	CreatedAt time.Time      `json:"created_at"`
}

func encodeDraftSet(set *models.DraftSet) ([]byte, error) {
	return json.Marshal(draftEntry{
		SessionID: set.SessionID,
		UserID:    set.UserID,
		Drafts:    set.Drafts,
		CreatedAt: set.CreatedAt,
	})
}

func decodeDraftSet(data []byte) (*models.DraftSet, error) {
	var e draftEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode draft set: %w", err)
	}
	return &models.DraftSet{
		SessionID: e.SessionID,
		UserID:    e.UserID,
		Drafts:    e.Drafts,
		CreatedAt: e.CreatedAt,
	}, nil
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) SetDocumentStatus(ctx context.Context, status models.StatusSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode document status: %w", err)
	}
	return c.client.Set(ctx, DocumentStatusKey(status.ID), data, ttl).Err()
}

func (c *RedisCache) GetDocumentStatus(ctx context.Context, docID uuid.UUID) (models.StatusSnapshot, bool, error) {
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

func (c *RedisCache) SaveDraftSet(ctx context.Context, set *models.DraftSet, ttl time.Duration) error {
	data, err := encodeDraftSet(set)
	if err != nil {
		return fmt.Errorf("encode draft set: %w", err)
	}
	return c.client.Set(ctx, DraftSessionKey(set.SessionID), data, ttl).Err()
}

func (c *RedisCache) GetDraftSet(ctx context.Context, sessionID uuid.UUID) (*models.DraftSet, bool, error) {
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

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
