package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// snapshotSource provides the currently published catalog snapshot.
type snapshotSource interface {
	Current(ctx context.Context) (*models.CatalogSnapshot, error)
}

// distanceResolver finds the nearest branch for a delivery address.
type distanceResolver interface {
	Resolve(ctx context.Context, branches []models.Branch, address string) (*models.DistanceResult, error)
}

// QuoteService computes itemized price quotes. BuildQuote is a pure function
// of the current snapshot, the distance result and the request; the only
// suspension points are the snapshot read and distance resolution.
type QuoteService struct {
	catalog       snapshotSource
	distance      distanceResolver
	maxCatalogAge time.Duration // 0 disables the staleness check
	now           func() time.Time
}

// NewQuoteService constructs a QuoteService.
func NewQuoteService(catalog snapshotSource, distance distanceResolver, maxCatalogAge time.Duration) *QuoteService {
	return &QuoteService{
		catalog:       catalog,
		distance:      distance,
		maxCatalogAge: maxCatalogAge,
		now:           time.Now,
	}
}

// BuildQuote validates the request, prices every component and assembles the
// response. Each line item is rounded to whole cents when computed and the
// subtotal is their plain sum, so line items always add up exactly. Unknown
// extras fail the whole request: dropping one would under-quote.
func (s *QuoteService) BuildQuote(ctx context.Context, req *models.QuoteRequest, sandbox bool) (*models.QuoteResponse, error) {
	started := s.now()

	startDate, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	snap, err := s.catalog.Current(ctx)
	if err != nil {
		return nil, err
	}
	if s.maxCatalogAge > 0 && s.now().Sub(snap.FetchedAt) > s.maxCatalogAge {
		return nil, fmt.Errorf("%w: snapshot %s fetched %s ago", utils.ErrCatalogStale,
			snap.Version, s.now().Sub(snap.FetchedAt).Truncate(time.Second))
	}

	product := snap.ProductByID(req.ProductID)
	if product == nil || !product.IsActive {
		return nil, fmt.Errorf("%w: product %q", utils.ErrProductNotFound, req.ProductID)
	}
	if !product.SupportsUsage(req.UsageCategory) {
		return nil, fmt.Errorf("%w: product %q does not support %s usage",
			utils.ErrUsageNotSupported, req.ProductID, req.UsageCategory)
	}

	rental, err := priceRental(product, req.RentalDays)
	if err != nil {
		return nil, err
	}

	season := snap.SeasonFor(startDate)
	rentalCents := rental.cents
	if season != nil {
		rentalCents = applyMultiplier(rentalCents, season.Multiplier)
	}

	// Distance resolution is the latency-critical path: it suspends on cache
	// I/O and possibly one bounded upstream call.
	dist, err := s.distance.Resolve(ctx, snap.Branches, req.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	delivery := priceDelivery(&snap.Delivery, dist, season)

	items := make([]models.LineItem, 0, 2+len(req.Extras))
	items = append(items, models.LineItem{
		Code: "RENTAL",
		Description: fmt.Sprintf("%s, %d day(s) @ %s rate", product.Name,
			req.RentalDays, rental.tier.Label),
		UnitPriceCents: rental.tier.UnitRateCents,
		Quantity:       rental.chargedUnits,
		ExtendedCents:  rentalCents,
	})
	items = append(items, models.LineItem{
		Code: "DELIVERY",
		Description: fmt.Sprintf("Delivery from %s (%.1f mi)", dist.Branch.Name,
			dist.DistanceMiles),
		UnitPriceCents: delivery.TotalCents,
		Quantity:       1,
		ExtendedCents:  delivery.TotalCents,
	})

	for _, reqExtra := range req.Extras {
		item, err := priceExtra(snap, &reqExtra, req.RentalDays)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	var subtotal int64
	for _, li := range items {
		subtotal += li.ExtendedCents
	}

	resp := &models.QuoteResponse{
		QuoteID:       uuid.New().String(),
		RequestID:     req.RequestID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		UsageCategory: req.UsageCategory,
		StartDate:     req.StartDate,
		RentalDays:    req.RentalDays,
		LineItems:     items,
		SubtotalCents: subtotal,
		Delivery:      delivery,
		Rental: models.RentalBreakdown{
			TierLabel:     rental.tier.Label,
			UnitDays:      rental.tier.UnitDays,
			UnitRateCents: rental.tier.UnitRateCents,
			FullUnits:     rental.fullUnits,
			RemainderDays: rental.remainderDays,
		},
		Meta: models.QuoteMeta{
			ElapsedMs:         s.now().Sub(started).Milliseconds(),
			SnapshotVersion:   snap.Version,
			SnapshotFetchedAt: snap.FetchedAt,
			DistanceCacheHit:  dist.CacheHit,
			Sandbox:           sandbox,
		},
	}
	if resp.RequestID == "" {
		resp.RequestID = uuid.New().String()
	}
	if season != nil {
		resp.Rental.SeasonalTier = season.Name
		resp.Rental.SeasonalMultiplier = season.Multiplier
	}

	log.Debug().
		Str("quote_id", resp.QuoteID).
		Str("product", product.ID).
		Int64("subtotal_cents", subtotal).
		Int64("elapsed_ms", resp.Meta.ElapsedMs).
		Bool("distance_cache_hit", dist.CacheHit).
		Msg("Quote built")

	return resp, nil
}

// validateRequest rejects malformed requests before any I/O happens.
func validateRequest(req *models.QuoteRequest) (time.Time, error) {
	if req.DeliveryAddress == "" {
		return time.Time{}, fmt.Errorf("%w: deliveryAddress is required", utils.ErrInvalidRequest)
	}
	if req.ProductID == "" {
		return time.Time{}, fmt.Errorf("%w: productId is required", utils.ErrInvalidRequest)
	}
	if req.RentalDays <= 0 {
		return time.Time{}, fmt.Errorf("%w: rentalDays must be positive", utils.ErrInvalidRequest)
	}
	if req.UsageCategory != models.UsageCommercial && req.UsageCategory != models.UsageEvent {
		return time.Time{}, fmt.Errorf("%w: usageCategory must be %q or %q",
			utils.ErrInvalidRequest, models.UsageCommercial, models.UsageEvent)
	}
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", utils.ErrInvalidRequest)
	}
	for _, e := range req.Extras {
		if e.ExtraID == "" {
			return time.Time{}, fmt.Errorf("%w: extra with empty id", utils.ErrInvalidRequest)
		}
		if e.Quantity <= 0 {
			return time.Time{}, fmt.Errorf("%w: extra %q quantity must be positive", utils.ErrInvalidRequest, e.ExtraID)
		}
	}
	return startDate, nil
}

// pricedRental is the outcome of tier selection and proration.
type pricedRental struct {
	tier          models.RateTier
	fullUnits     int
	remainderDays int
	chargedUnits  int
	cents         int64
}

// priceRental selects the rate tier for the rental length (lower bound
// inclusive, upper exclusive) and prices it under the product's proration
// policy. Partial units are always rounded up, never truncated.
func priceRental(p *models.Product, days int) (*pricedRental, error) {
	var tier *models.RateTier
	for i := range p.RateTiers {
		t := &p.RateTiers[i]
		if days >= t.MinDays && (t.MaxDays == 0 || days < t.MaxDays) {
			tier = t
			break
		}
	}
	if tier == nil {
		return nil, fmt.Errorf("%w: no rate tier covers a %d-day rental of %q",
			utils.ErrInvalidRequest, days, p.ID)
	}

	full := days / tier.UnitDays
	rem := days % tier.UnitDays
	r := &pricedRental{tier: *tier, fullUnits: full, remainderDays: rem}

	switch p.Proration {
	case models.ProrationFullUnit:
		r.chargedUnits = full
		if rem > 0 {
			r.chargedUnits++
		}
		r.remainderDays = 0
		r.cents = int64(r.chargedUnits) * tier.UnitRateCents
	default: // per-day
		r.chargedUnits = full
		r.cents = int64(full) * tier.UnitRateCents
		if rem > 0 {
			// Remainder billed at the tier's per-day equivalent, rounded up
			// to the next cent via integer ceiling division.
			r.cents += ceilDiv(tier.UnitRateCents*int64(rem), int64(tier.UnitDays))
		}
	}
	return r, nil
}

// priceDelivery computes the delivery breakdown: within the free-distance
// threshold only the base fee applies; beyond it every mile is billed.
func priceDelivery(rule *models.DeliveryRule, dist *models.DistanceResult, season *models.SeasonalTier) models.DeliveryBreakdown {
	billable := dist.DistanceMiles - rule.FreeMiles
	if billable < 0 {
		billable = 0
	}

	cents := rule.BaseFeeCents + roundCents(billable*float64(rule.PerMileCents))
	applied := false
	if season != nil && season.AppliesToDelivery {
		cents = applyMultiplier(cents, season.Multiplier)
		applied = true
	}

	return models.DeliveryBreakdown{
		BranchID:        dist.Branch.ID,
		BranchName:      dist.Branch.Name,
		DistanceMiles:   dist.DistanceMiles,
		BillableMiles:   billable,
		BaseFeeCents:    rule.BaseFeeCents,
		PerMileCents:    rule.PerMileCents,
		SeasonalApplied: applied,
		TotalCents:      cents,
	}
}

// priceExtra prices one requested add-on per its pricing basis.
func priceExtra(snap *models.CatalogSnapshot, req *models.QuoteExtra, days int) (*models.LineItem, error) {
	extra := snap.ExtraByID(req.ExtraID)
	if extra == nil {
		return nil, fmt.Errorf("%w: extra %q", utils.ErrExtraNotFound, req.ExtraID)
	}
	if extra.MinQty > 0 && req.Quantity < extra.MinQty {
		return nil, fmt.Errorf("%w: extra %q requires at least %d",
			utils.ErrInvalidRequest, req.ExtraID, extra.MinQty)
	}
	if extra.MaxQty > 0 && req.Quantity > extra.MaxQty {
		return nil, fmt.Errorf("%w: extra %q allows at most %d",
			utils.ErrInvalidRequest, req.ExtraID, extra.MaxQty)
	}

	var extended int64
	switch extra.Basis {
	case models.BasisFlat:
		if req.Quantity != 1 {
			return nil, fmt.Errorf("%w: extra %q is flat-priced, quantity must be 1",
				utils.ErrInvalidRequest, req.ExtraID)
		}
		extended = extra.UnitPriceCents
	case models.BasisPerDay:
		extended = extra.UnitPriceCents * int64(days) * int64(req.Quantity)
	case models.BasisPerUnit:
		extended = extra.UnitPriceCents * int64(req.Quantity)
	default:
		return nil, fmt.Errorf("%w: extra %q has unknown basis %q",
			utils.ErrInvalidRequest, req.ExtraID, extra.Basis)
	}

	return &models.LineItem{
		Code:           extra.ID,
		Description:    extra.Name,
		UnitPriceCents: extra.UnitPriceCents,
		Quantity:       req.Quantity,
		ExtendedCents:  extended,
	}, nil
}

// applyMultiplier scales a cent amount, rounding to the nearest cent.
func applyMultiplier(cents int64, multiplier float64) int64 {
	return roundCents(float64(cents) * multiplier)
}

func roundCents(f float64) int64 {
	return int64(math.Round(f))
}

// ceilDiv returns ceil(a/b) for positive operands.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
