// internal/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"support-triage/internal/common/logger"
	"support-triage/internal/common/metrics"
	"support-triage/internal/models"
)

// ResponseCache is an advisory, tenant-scoped cache for completed workflow
// results. Entries expire on a TTL; eviction under memory pressure is left to
// the Redis maxmemory policy. Staleness is acceptable because cached answers
// are advisory, never transactional.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(client *redis.Client, ttl time.Duration, log logger.Logger) *ResponseCache {
	return &ResponseCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "response-cache"}),
	}
}

// Key derives the tenant-scoped cache key from the normalized query and a
// fingerprint of the conversational context. Tenant isolation holds because
// the tenant ID is part of the key, never inferable from another tenant's.
func Key(tenantID, query string, priorMessages []models.Message) string {
	h := sha256.New()
	h.Write([]byte(normalize(query)))
	for _, m := range priorMessages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return "triage:" + tenantID + ":" + hex.EncodeToString(h.Sum(nil))
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Get returns the cached result for a key, or nil on miss or cache failure.
// Cache failures never surface to the pipeline.
func (c *ResponseCache) Get(ctx context.Context, key string) *models.WorkflowResult {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache lookup failed", map[string]interface{}{"error": err.Error()})
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil
	}

	var result models.WorkflowResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &result
}

// Set stores a result under a key with the configured TTL. Failures are
// logged and swallowed.
func (c *ResponseCache) Set(ctx context.Context, key string, result *models.WorkflowResult) {
	if c == nil || c.client == nil || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache store failed", map[string]interface{}{"error": err.Error()})
	}
}
