package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// HealthHandler reports service liveness plus the state of the catalog, since
// a running process with no snapshot cannot serve quotes.
type HealthHandler struct {
	redis          *cache.RedisClient
	catalogService *service.CatalogService
	startedAt      time.Time
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(redis *cache.RedisClient, catalogService *service.CatalogService) *HealthHandler {
	return &HealthHandler{
		redis:          redis,
		catalogService: catalogService,
		startedAt:      time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	code := 200

	redisStatus := "ok"
	if err := h.redis.Ping(c.Request.Context()); err != nil {
		redisStatus = "down"
		status = "degraded"
		code = 503
	}

	catalog := gin.H{"status": "missing"}
	if snap, err := h.catalogService.Current(c.Request.Context()); err == nil {
		catalog = gin.H{
			"status":     "ok",
			"version":    snap.Version,
			"fetchedAt":  snap.FetchedAt,
			"ageSeconds": int(time.Since(snap.FetchedAt).Seconds()),
		}
	} else {
		status = "degraded"
	}

	utils.Success(c, code, status, gin.H{
		"uptimeSeconds": int(time.Since(h.startedAt).Seconds()),
		"redis":         redisStatus,
		"catalog":       catalog,
	})
}
