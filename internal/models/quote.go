package models

import "time"

// QuoteExtra is one requested add-on line.
type QuoteExtra struct {
	ExtraID  string `json:"extraId" binding:"required"`
	Quantity int    `json:"quantity"`
}

// QuoteRequest is the inbound payload for a price quote.
type QuoteRequest struct {
	RequestID       string        `json:"requestId"`
	DeliveryAddress string        `json:"deliveryAddress" binding:"required"`
	ProductID       string        `json:"productId" binding:"required"`
	StartDate       string        `json:"startDate" binding:"required"` // YYYY-MM-DD
	RentalDays      int           `json:"rentalDays"`
	UsageCategory   UsageCategory `json:"usageCategory" binding:"required"`
	Extras          []QuoteExtra  `json:"extras"`
}

// LineItem is one priced row of a quote. ExtendedCents is always the exact
// product of unit price, quantity and any multiplier, rounded per line, so
// the sum of extended prices equals the subtotal with no drift.
type LineItem struct {
	Code           string `json:"code"`
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	ExtendedCents  int64  `json:"extendedCents"`
}

// DeliveryBreakdown explains the delivery portion of a quote.
type DeliveryBreakdown struct {
	BranchID        string  `json:"branchId"`
	BranchName      string  `json:"branchName"`
	DistanceMiles   float64 `json:"distanceMiles"`
	BillableMiles   float64 `json:"billableMiles"`
	BaseFeeCents    int64   `json:"baseFeeCents"`
	PerMileCents    int64   `json:"perMileCents"`
	SeasonalApplied bool    `json:"seasonalApplied"`
	TotalCents      int64   `json:"totalCents"`
}

// RentalBreakdown records which rate tier and seasonal tier were applied.
type RentalBreakdown struct {
	TierLabel          string  `json:"tierLabel"`
	UnitDays           int     `json:"unitDays"`
	UnitRateCents      int64   `json:"unitRateCents"`
	FullUnits          int     `json:"fullUnits"`
	RemainderDays      int     `json:"remainderDays"`
	SeasonalTier       string  `json:"seasonalTier,omitempty"`
	SeasonalMultiplier float64 `json:"seasonalMultiplier,omitempty"`
}

// QuoteMeta is generation metadata consumed by observability collaborators.
type QuoteMeta struct {
	ElapsedMs         int64     `json:"elapsedMs"`
	SnapshotVersion   string    `json:"snapshotVersion"`
	SnapshotFetchedAt time.Time `json:"snapshotFetchedAt"`
	DistanceCacheHit  bool      `json:"distanceCacheHit"`
	Sandbox           bool      `json:"sandbox"`
}

// QuoteResponse is a fully itemized quote.
type QuoteResponse struct {
	QuoteID       string            `json:"quoteId"`
	RequestID     string            `json:"requestId"`
	ProductID     string            `json:"productId"`
	ProductName   string            `json:"productName"`
	UsageCategory UsageCategory     `json:"usageCategory"`
	StartDate     string            `json:"startDate"`
	RentalDays    int               `json:"rentalDays"`
	LineItems     []LineItem        `json:"lineItems"`
	SubtotalCents int64             `json:"subtotalCents"`
	Delivery      DeliveryBreakdown `json:"delivery"`
	Rental        RentalBreakdown   `json:"rental"`
	Meta          QuoteMeta         `json:"meta"`
}

// DistanceResult is a resolved nearest-branch answer.
type DistanceResult struct {
	Branch          Branch  `json:"branch"`
	DistanceMiles   float64 `json:"distanceMiles"`
	DurationSeconds int     `json:"durationSeconds"`
	CacheHit        bool    `json:"cacheHit"`
}
