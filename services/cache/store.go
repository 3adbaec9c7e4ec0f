// Package cache implements the advisory cache-aside store used in front of
// the market-data provider. Nothing in this package ever fails a caller:
// backend and decoding errors are logged and degrade to a miss or a no-op.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"path"
	"strings"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
)

// Backend is the raw byte store behind Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close(ctx context.Context) error
}

// Store serializes values as JSON on top of a Backend.
type Store struct {
	backend    Backend
	defaultTTL time.Duration
}

func NewStore(backend Backend, defaultTTL time.Duration) *Store {
	return &Store{backend: backend, defaultTTL: defaultTTL}
}

// DefaultTTL is the expiry applied by Set.
func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Get decodes the value at key into dest and reports whether it was a hit.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		logCacheError("get", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logCacheError("decode", key, err)
		return false
	}
	return true
}

// Set stores value with the default TTL.
func (s *Store) Set(ctx context.Context, key string, value any) {
	s.SetWithTTL(ctx, key, value, s.defaultTTL)
}

func (s *Store) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logCacheError("encode", key, err)
		return
	}
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		logCacheError("set", key, err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		logCacheError("delete", key, err)
	}
}

// DeletePattern removes every key matching a glob ("*", "?", "[...]") and
// returns how many were removed. The literal prefix before the first
// wildcard narrows the backend scan.
func (s *Store) DeletePattern(ctx context.Context, pattern string) int {
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?[\\"); i >= 0 {
		prefix = pattern[:i]
	}

	keys, err := s.backend.Keys(ctx, prefix)
	if err != nil {
		logCacheError("scan", pattern, err)
		return 0
	}

	var matched []string
	for _, key := range keys {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			matched = append(matched, key)
		}
	}
	return s.deleteKeys(ctx, pattern, matched)
}

// DeleteWhere removes keys of the given kinds whose parsed form satisfies match.
func (s *Store) DeleteWhere(ctx context.Context, kinds []Kind, match func(Key) bool) int {
	var matched []string
	for _, kind := range kinds {
		keys, err := s.backend.Keys(ctx, kind.Prefix())
		if err != nil {
			logCacheError("scan", string(kind), err)
			continue
		}
		for _, raw := range keys {
			key, ok := ParseKey(raw)
			if ok && key.Kind == kind && match(key) {
				matched = append(matched, raw)
			}
		}
	}
	return s.deleteKeys(ctx, "where", matched)
}

func (s *Store) deleteKeys(ctx context.Context, label string, keys []string) int {
	if len(keys) == 0 {
		return 0
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		logCacheError("delete", label, err)
		return 0
	}
	return len(keys)
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

func logCacheError(op, key string, err error) {
	log.Printf("Cache degraded to miss: %v", apperrors.Cache("cache."+op+" "+key, err))
}
