package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/middleware"
	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// PricingHandler handles the quote and prefetch HTTP endpoints.
type PricingHandler struct {
	quoteService    *service.QuoteService
	catalogService  *service.CatalogService
	distanceService *service.DistanceService
}

// NewPricingHandler constructs a PricingHandler.
func NewPricingHandler(quoteService *service.QuoteService, catalogService *service.CatalogService, distanceService *service.DistanceService) *PricingHandler {
	return &PricingHandler{
		quoteService:    quoteService,
		catalogService:  catalogService,
		distanceService: distanceService,
	}
}

// CreateQuote handles POST /v1/pricing/quote
func (h *PricingHandler) CreateQuote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	quote, err := h.quoteService.BuildQuote(c.Request.Context(), &req, middleware.IsSandbox(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.Success(c, 200, "Quote generated", quote)
}

// PrefetchLocation handles POST /v1/pricing/location/prefetch.
// It warms the distance cache for an address ahead of the real quote call and
// acknowledges immediately; failures are logged but never surfaced.
func (h *PricingHandler) PrefetchLocation(c *gin.Context) {
	var req struct {
		DeliveryLocation string `json:"deliveryLocation" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "deliveryLocation is required")
		return
	}

	// Branches come from the current snapshot; without one there is nothing
	// to warm, which is fine for a best-effort call.
	snap, err := h.catalogService.Current(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Prefetch skipped: no catalog snapshot")
		utils.Success(c, 202, "Prefetch accepted", nil)
		return
	}

	h.distanceService.Prefetch(snap.Branches, req.DeliveryLocation)
	utils.Success(c, 202, "Prefetch accepted", nil)
}

func (h *PricingHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidRequest):
		utils.Error(c, 400, "INVALID_REQUEST", err.Error())
	case errors.Is(err, utils.ErrUsageNotSupported):
		utils.Error(c, 400, "USAGE_NOT_SUPPORTED", err.Error())
	case errors.Is(err, utils.ErrProductNotFound):
		utils.Error(c, 404, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, utils.ErrExtraNotFound):
		utils.Error(c, 404, "EXTRA_NOT_FOUND", err.Error())
	case errors.Is(err, utils.ErrCatalogUnavailable):
		utils.Error(c, 503, "CATALOG_UNAVAILABLE", "Pricing catalog is not available yet")
	case errors.Is(err, utils.ErrCatalogStale):
		utils.Error(c, 503, "CATALOG_STALE", "Pricing catalog is too old to quote from")
	case errors.Is(err, utils.ErrUpstreamTimeout):
		utils.Error(c, 504, "UPSTREAM_TIMEOUT", "Distance resolution timed out")
	case errors.Is(err, utils.ErrUpstreamFailed):
		utils.Error(c, 502, "UPSTREAM_FAILED", "Distance resolution failed")
	default:
		log.Error().Err(err).Msg("Quote request failed")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}
