package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PrivvyRentals/pricing_api/internal/models"
)

// DistanceKeyPrefix namespaces distance entries so admin tooling can clear
// the category with one pattern.
const DistanceKeyPrefix = "distance:"

// DistanceCache provides typed access to cached branch->address distance
// results. Entries are idempotent: concurrent resolutions of the same pair
// compute the same answer, so last-write-wins is fine.
type DistanceCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewDistanceCache creates a DistanceCache with the given entry TTL.
func NewDistanceCache(redis *RedisClient, ttl time.Duration) *DistanceCache {
	return &DistanceCache{redis: redis, ttl: ttl}
}

// NormalizeAddress canonicalizes a free-form delivery address for use as a
// cache key: lowercase, collapsed whitespace, punctuation stripped. Two
// spellings of the same address should hit the same entry.
func NormalizeAddress(addr string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(addr)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == ',' || r == '.' || r == '#':
			if !lastSpace {
				b.WriteByte('-')
				lastSpace = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// key builds the Redis key for one (branch, normalized address) pair.
func (c *DistanceCache) key(branchID, normalizedAddr string) string {
	return fmt.Sprintf("%s%s:%s", DistanceKeyPrefix, branchID, normalizedAddr)
}

// Set stores a resolved distance entry with the configured TTL. The entry is
// written as one JSON value, so readers never observe a partial write.
func (c *DistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	entry.ResolvedAt = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal distance entry: %w", err)
	}
	key := c.key(entry.BranchID, NormalizeAddress(entry.Address))
	if err := c.redis.Set(ctx, key, string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set distance entry: %w", err)
	}
	return nil
}

// Get returns the cached entry for a branch/address pair, or ErrNotFound.
func (c *DistanceCache) Get(ctx context.Context, branchID, address string) (*models.DistanceCacheEntry, error) {
	data, err := c.redis.Get(ctx, c.key(branchID, NormalizeAddress(address)))
	if err != nil {
		return nil, err
	}
	var entry models.DistanceCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distance entry: %w", err)
	}
	return &entry, nil
}
