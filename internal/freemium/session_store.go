package freemium

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// watchKeyPrefix is the fixed storage key prefix for per-viewer day records.
const watchKeyPrefix = "gate:watch:"

// recordTTL keeps stale day records from accumulating; anything older than
// two days is past the reset boundary anyway.
const recordTTL = 48 * time.Hour

// Record is the persisted per-viewer watch state for one calendar day.
type Record struct {
	Time int    `json:"time"` // cumulative watched seconds
	Date string `json:"date"` // calendar day, YYYY-MM-DD
}

// SessionStore persists watch records per viewer. Load returns (nil, nil)
// when no record exists.
type SessionStore interface {
	Load(ctx context.Context, viewerID string) (*Record, error)
	Save(ctx context.Context, viewerID string, rec Record) error
}

// RedisSessionStore keeps watch records in Redis as JSON.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Load reads the viewer's record, or (nil, nil) when absent.
func (s *RedisSessionStore) Load(ctx context.Context, viewerID string) (*Record, error) {
	raw, err := s.client.Get(ctx, watchKeyPrefix+viewerID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load watch record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode watch record: %w", err)
	}
	return &rec, nil
}

// Save writes the viewer's record with a rolling TTL.
func (s *RedisSessionStore) Save(ctx context.Context, viewerID string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode watch record: %w", err)
	}
	if err := s.client.Set(ctx, watchKeyPrefix+viewerID, raw, recordTTL).Err(); err != nil {
		return fmt.Errorf("save watch record: %w", err)
	}
	return nil
}

// MemorySessionStore keeps watch records in process memory. Used in tests and
// deployments without Redis.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{records: make(map[string]Record)}
}

// Load reads the viewer's record, or (nil, nil) when absent.
func (s *MemorySessionStore) Load(_ context.Context, viewerID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[viewerID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Save writes the viewer's record.
func (s *MemorySessionStore) Save(_ context.Context, viewerID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[viewerID] = rec
	return nil
}
