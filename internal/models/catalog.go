package models

import "time"

// UsageCategory classifies what a rental is used for. Pricing and product
// availability can differ between categories.
type UsageCategory string

const (
	UsageCommercial UsageCategory = "commercial"
	UsageEvent      UsageCategory = "event"
)

// ProrationPolicy controls how a partial rental unit is billed.
// Both policies round up; a partial unit is never truncated.
type ProrationPolicy string

const (
	// ProrationPerDay bills full units plus the remainder at the tier's
	// per-day equivalent, rounded up to the next cent.
	ProrationPerDay ProrationPolicy = "per-day"
	// ProrationFullUnit bills ceil(days/unitDays) whole units.
	ProrationFullUnit ProrationPolicy = "full-unit"
)

// RateTier is one rate bracket of a product. A rental of N days matches the
// tier where MinDays <= N < MaxDays (MaxDays == 0 means open-ended).
type RateTier struct {
	Label         string `json:"label"`
	MinDays       int    `json:"minDays"`
	MaxDays       int    `json:"maxDays"`
	UnitDays      int    `json:"unitDays"`
	UnitRateCents int64  `json:"unitRateCents"`
}

// Product is a rentable unit (e.g. a restroom trailer model).
// Products are immutable within a snapshot and replaced wholesale on sync.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	UsageCategories []UsageCategory `json:"usageCategories"`
	ADA             bool            `json:"ada"`
	HasPower        bool            `json:"hasPower"`
	HasWater        bool            `json:"hasWater"`
	RateTiers       []RateTier      `json:"rateTiers"`
	Proration       ProrationPolicy `json:"proration"`
	IsActive        bool            `json:"isActive"`
}

// SupportsUsage reports whether the product may be rented for the category.
func (p *Product) SupportsUsage(u UsageCategory) bool {
	for _, c := range p.UsageCategories {
		if c == u {
			return true
		}
	}
	return false
}

// ExtraBasis is the pricing basis of an add-on item.
type ExtraBasis string

const (
	BasisFlat    ExtraBasis = "flat"     // charged once
	BasisPerDay  ExtraBasis = "per-day"  // unit price x rental days x quantity
	BasisPerUnit ExtraBasis = "per-unit" // unit price x quantity
)

// ExtraItem is an add-on (e.g. handwash station, extra pump-out).
type ExtraItem struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unitPriceCents"`
	Basis          ExtraBasis `json:"basis"`
	MinQty         int        `json:"minQty"`
	MaxQty         int        `json:"maxQty"` // 0 = unbounded
}

// Branch is a physical service location used as the delivery origin.
type Branch struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Address            string  `json:"address"`
	ServiceRadiusMiles float64 `json:"serviceRadiusMiles"`
}

// DeliveryRule defines how delivery cost is derived from distance.
type DeliveryRule struct {
	FreeMiles    float64 `json:"freeMiles"`
	PerMileCents int64   `json:"perMileCents"`
	BaseFeeCents int64   `json:"baseFeeCents"`
}

// SeasonalTier is a date-range multiplier. Overlapping tiers are resolved by
// explicit Priority (higher wins), never by row order; ties break on Name.
type SeasonalTier struct {
	Name              string    `json:"name"`
	Priority          int       `json:"priority"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	Multiplier        float64   `json:"multiplier"`
	AppliesToDelivery bool      `json:"appliesToDelivery"`
}

// Contains reports whether the civil date d falls in the tier's inclusive range.
func (t *SeasonalTier) Contains(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(t.StartDate) && !day.After(t.EndDate)
}

// CatalogSnapshot is the immutable, versioned bundle of all pricing data
// valid as of one sync cycle. It is only ever replaced, never mutated:
// readers observe either the whole old snapshot or the whole new one.
type CatalogSnapshot struct {
	Version           string         `json:"version"`
	FetchedAt         time.Time      `json:"fetchedAt"`
	PreviousVersion   string         `json:"previousVersion,omitempty"`
	PreviousFetchedAt *time.Time     `json:"previousFetchedAt,omitempty"`
	Products          []Product      `json:"products"`
	Extras            []ExtraItem    `json:"extras"`
	Branches          []Branch       `json:"branches"`
	Delivery          DeliveryRule   `json:"delivery"`
	Seasons           []SeasonalTier `json:"seasons"`
}

// ProductByID returns the product with the given id, or nil.
func (s *CatalogSnapshot) ProductByID(id string) *Product {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i]
		}
	}
	return nil
}

// ExtraByID returns the extra with the given id, or nil.
func (s *CatalogSnapshot) ExtraByID(id string) *ExtraItem {
	for i := range s.Extras {
		if s.Extras[i].ID == id {
			return &s.Extras[i]
		}
	}
	return nil
}

// SeasonFor returns the applicable seasonal tier for a rental start date:
// the highest-priority tier whose range contains the date, ties broken by
// name ascending. Returns nil when no tier matches.
func (s *CatalogSnapshot) SeasonFor(start time.Time) *SeasonalTier {
	var best *SeasonalTier
	for i := range s.Seasons {
		t := &s.Seasons[i]
		if !t.Contains(start) {
			continue
		}
		if best == nil || t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.Name < best.Name) {
			best = t
		}
	}
	return best
}

// DistanceCacheEntry is the cached result of one branch->address resolution.
type DistanceCacheEntry struct {
	BranchID        string    `json:"branchId"`
	Address         string    `json:"address"`
	DistanceMiles   float64   `json:"distanceMiles"`
	DurationSeconds int       `json:"durationSeconds"`
	ResolvedAt      time.Time `json:"resolvedAt"`
}
