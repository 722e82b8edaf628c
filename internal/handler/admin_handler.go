package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// AdminHandler exposes catalog and cache operations for the dashboard.
type AdminHandler struct {
	catalogService *service.CatalogService
	redis          *cache.RedisClient
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(catalogService *service.CatalogService, redis *cache.RedisClient) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
		redis:          redis,
	}
}

// TriggerSync handles POST /v1/admin/catalog/sync.
// Runs a full catalog sync immediately instead of waiting for the worker tick.
func (h *AdminHandler) TriggerSync(c *gin.Context) {
	snap, err := h.catalogService.Sync(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Manual catalog sync failed")
		utils.Error(c, 502, "SYNC_FAILED", err.Error())
		return
	}

	utils.Success(c, 200, "Catalog synced", gin.H{
		"version":   snap.Version,
		"fetchedAt": snap.FetchedAt,
		"products":  len(snap.Products),
		"extras":    len(snap.Extras),
		"branches":  len(snap.Branches),
		"seasons":   len(snap.Seasons),
	})
}

// GetCatalog handles GET /v1/admin/catalog.
// Returns the full current snapshot so operators can see exactly what quoting
// runs against.
func (h *AdminHandler) GetCatalog(c *gin.Context) {
	snap, err := h.catalogService.Current(c.Request.Context())
	if err != nil {
		utils.Error(c, 503, "CATALOG_UNAVAILABLE", "No catalog snapshot has been published yet")
		return
	}

	utils.Success(c, 200, "Current catalog", snap)
}

// ListCacheKeys handles GET /v1/admin/cache/keys?pattern=&limit=
func (h *AdminHandler) ListCacheKeys(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		pattern = cache.DistanceKeyPrefix + "*"
	}
	if !validCachePattern(pattern) {
		utils.Error(c, 400, "INVALID_REQUEST", "pattern must target catalog: or distance: keys")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			utils.Error(c, 400, "INVALID_REQUEST", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	keys, err := h.redis.ScanPrefix(c.Request.Context(), pattern, limit)
	if err != nil {
		log.Error().Err(err).Str("pattern", pattern).Msg("Cache key scan failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to scan cache keys")
		return
	}

	utils.Success(c, 200, "Cache keys", gin.H{
		"pattern": pattern,
		"count":   len(keys),
		"keys":    keys,
	})
}

// DeleteCacheKeys handles DELETE /v1/admin/cache/keys?pattern=
// Used to force a re-resolve after a distance provider issue or a bad batch
// of cached results.
func (h *AdminHandler) DeleteCacheKeys(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "pattern is required")
		return
	}
	if !validCachePattern(pattern) {
		utils.Error(c, 400, "INVALID_REQUEST", "pattern must target catalog: or distance: keys")
		return
	}

	deleted := 0
	start := time.Now()
	for {
		keys, err := h.redis.ScanPrefix(c.Request.Context(), pattern, 500)
		if err != nil {
			log.Error().Err(err).Str("pattern", pattern).Msg("Cache key scan failed")
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to scan cache keys")
			return
		}
		if len(keys) == 0 {
			break
		}
		if err := h.redis.Delete(c.Request.Context(), keys...); err != nil {
			log.Error().Err(err).Str("pattern", pattern).Msg("Cache key delete failed")
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to delete cache keys")
			return
		}
		deleted += len(keys)
		if time.Since(start) > 10*time.Second {
			break
		}
	}

	log.Info().Str("pattern", pattern).Int("deleted", deleted).Msg("Cache keys purged")
	utils.Success(c, 200, "Cache keys deleted", gin.H{
		"pattern": pattern,
		"deleted": deleted,
	})
}

// validCachePattern restricts admin cache operations to our own key
// namespaces so a stray pattern can never touch unrelated Redis data.
func validCachePattern(pattern string) bool {
	return strings.HasPrefix(pattern, cache.DistanceKeyPrefix) ||
		strings.HasPrefix(pattern, "catalog:")
}
