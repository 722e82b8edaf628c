package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PrivvyRentals/pricing_api/internal/models"
)

// SnapshotKey holds the whole versioned catalog bundle as one value.
// Publishing is a single SET, so a concurrent reader observes either the
// fully-old or the fully-new snapshot, never a mix.
const SnapshotKey = "catalog:snapshot"

// CatalogCache provides typed access to the published catalog snapshot.
// Serialization errors surface here, at the boundary, instead of inside
// the pricing logic.
type CatalogCache struct {
	redis *RedisClient
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(redis *RedisClient) *CatalogCache {
	return &CatalogCache{redis: redis}
}

// SetSnapshot atomically replaces the published snapshot. Snapshots carry no
// TTL: a stale snapshot is still the best available answer until the next
// successful sync.
func (c *CatalogCache) SetSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, SnapshotKey, string(data), 0); err != nil {
		return fmt.Errorf("failed to publish catalog snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the currently published snapshot, or ErrNotFound when
// no sync has succeeded yet.
func (c *CatalogCache) GetSnapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	data, err := c.redis.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, err
	}
	var snap models.CatalogSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot drops the published snapshot. Admin-only escape hatch.
func (c *CatalogCache) DeleteSnapshot(ctx context.Context) error {
	return c.redis.Delete(ctx, SnapshotKey)
}
