// Package respcache is a content-addressed cache of prior model outputs.
package respcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lamnguyen-dev/chat-dispatch/internal/pool"
)

const (
	// TTL is fixed at write time and never refreshed on read.
	TTL = 7 * 24 * time.Hour

	// minResponseLen guards against caching trivially short output.
	minResponseLen = 10

	// errorMarker marks upstream failure text that must never be cached.
	errorMarker = "[ERROR]"
)

type Cache struct {
	pool *pool.Pool
}

func New(p *pool.Pool) *Cache {
	return &Cache{pool: p}
}

// Get looks up a prior response for the normalized query and model pair.
// Any backend error is a miss.
func (c *Cache) Get(ctx context.Context, query, modelID string) (string, bool) {
	key := cacheKey(query, modelID)

	text, err := c.pool.SelectByKey(key).Client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return text, true
}

// Put stores a response under the query/model key. Responses that are too
// short or carry the error marker are refused so failure output cannot
// poison the cache. A failed write is logged and dropped.
func (c *Cache) Put(ctx context.Context, query, modelID, text string) {
	if !Cacheable(text) {
		return
	}

	key := cacheKey(query, modelID)
	if err := c.pool.SelectByKey(key).Client.Set(ctx, key, text, TTL).Err(); err != nil {
		log.Printf("response cache write failed for model %s: %v", modelID, err)
	}
}

// Cacheable reports whether response text is eligible for storage.
func Cacheable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minResponseLen {
		return false
	}
	return !strings.Contains(trimmed, errorMarker)
}

// cacheKey hashes the normalized query together with the producing model id,
// so the same question answered by different models caches independently.
func cacheKey(query, modelID string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized + "\n" + modelID))
	return fmt.Sprintf("respcache:%x", sum)
}
