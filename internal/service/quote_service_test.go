package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

type fakeSnapshotSource struct {
	snap *models.CatalogSnapshot
	err  error
}

func (f *fakeSnapshotSource) Current(ctx context.Context) (*models.CatalogSnapshot, error) {
	return f.snap, f.err
}

type fakeDistanceResolver struct {
	result *models.DistanceResult
	err    error
}

func (f *fakeDistanceResolver) Resolve(ctx context.Context, branches []models.Branch, address string) (*models.DistanceResult, error) {
	return f.result, f.err
}

func date(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func testSnapshot() *models.CatalogSnapshot {
	return &models.CatalogSnapshot{
		Version:   "v-test",
		FetchedAt: time.Now().UTC(),
		Products: []models.Product{
			{
				ID:              "trailer-std",
				Name:            "Standard Restroom Trailer",
				UsageCategories: []models.UsageCategory{models.UsageCommercial, models.UsageEvent},
				Proration:       models.ProrationPerDay,
				IsActive:        true,
				RateTiers: []models.RateTier{
					{Label: "daily", MinDays: 1, MaxDays: 7, UnitDays: 1, UnitRateCents: 10000},
					{Label: "weekly", MinDays: 7, MaxDays: 28, UnitDays: 7, UnitRateCents: 60000},
					{Label: "monthly", MinDays: 28, MaxDays: 0, UnitDays: 28, UnitRateCents: 240000},
				},
			},
			{
				ID:              "trailer-lux",
				Name:            "Luxury Restroom Trailer",
				UsageCategories: []models.UsageCategory{models.UsageEvent},
				Proration:       models.ProrationFullUnit,
				IsActive:        true,
				RateTiers: []models.RateTier{
					{Label: "weekly", MinDays: 1, MaxDays: 0, UnitDays: 7, UnitRateCents: 70000},
				},
			},
			{
				ID:              "trailer-old",
				Name:            "Retired Model",
				UsageCategories: []models.UsageCategory{models.UsageCommercial},
				Proration:       models.ProrationPerDay,
				IsActive:        false,
				RateTiers: []models.RateTier{
					{Label: "daily", MinDays: 1, MaxDays: 0, UnitDays: 1, UnitRateCents: 5000},
				},
			},
		},
		Extras: []models.ExtraItem{
			{ID: "handwash", Name: "Handwash Station", UnitPriceCents: 15000, Basis: models.BasisPerUnit, MinQty: 1, MaxQty: 4},
			{ID: "pump-out", Name: "Extra Pump-Out", UnitPriceCents: 2500, Basis: models.BasisPerDay},
			{ID: "damage-waiver", Name: "Damage Waiver", UnitPriceCents: 5000, Basis: models.BasisFlat},
		},
		Branches: []models.Branch{
			{ID: "b1", Name: "North Yard", Address: "100 Depot Rd"},
			{ID: "b2", Name: "South Yard", Address: "200 Yard Ave"},
		},
		Delivery: models.DeliveryRule{FreeMiles: 10, PerMileCents: 500, BaseFeeCents: 2500},
		Seasons: []models.SeasonalTier{
			{Name: "summer-peak", Priority: 10, StartDate: date("2026-06-01"), EndDate: date("2026-08-31"), Multiplier: 1.25},
			{Name: "holiday", Priority: 20, StartDate: date("2026-07-01"), EndDate: date("2026-07-10"), Multiplier: 1.5, AppliesToDelivery: true},
		},
	}
}

func testDistance(miles float64) *models.DistanceResult {
	return &models.DistanceResult{
		Branch:          models.Branch{ID: "b1", Name: "North Yard", Address: "100 Depot Rd"},
		DistanceMiles:   miles,
		DurationSeconds: int(miles * 90),
		CacheHit:        true,
	}
}

func newTestQuoteService(snap *models.CatalogSnapshot, dist *models.DistanceResult) *QuoteService {
	return NewQuoteService(
		&fakeSnapshotSource{snap: snap},
		&fakeDistanceResolver{result: dist},
		0,
	)
}

func baseRequest() *models.QuoteRequest {
	return &models.QuoteRequest{
		DeliveryAddress: "123 Main St, Springfield",
		ProductID:       "trailer-std",
		StartDate:       "2026-03-10",
		RentalDays:      3,
		UsageCategory:   models.UsageCommercial,
	}
}

func TestBuildQuoteBasic(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	resp, err := svc.BuildQuote(context.Background(), baseRequest(), false)
	require.NoError(t, err)

	// 3 days at $100/day
	require.Len(t, resp.LineItems, 2)
	assert.Equal(t, "RENTAL", resp.LineItems[0].Code)
	assert.Equal(t, int64(30000), resp.LineItems[0].ExtendedCents)

	// $25 base + 20 billable miles at $5/mile
	assert.Equal(t, "DELIVERY", resp.LineItems[1].Code)
	assert.Equal(t, int64(12500), resp.LineItems[1].ExtendedCents)
	assert.Equal(t, 20.0, resp.Delivery.BillableMiles)
	assert.Equal(t, "b1", resp.Delivery.BranchID)
	assert.False(t, resp.Delivery.SeasonalApplied)

	assert.Equal(t, int64(42500), resp.SubtotalCents)
	assert.Equal(t, "v-test", resp.Meta.SnapshotVersion)
	assert.True(t, resp.Meta.DistanceCacheHit)
	assert.NotEmpty(t, resp.QuoteID)
	assert.NotEmpty(t, resp.RequestID)
}

func TestBuildQuoteWithinFreeDistance(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(8))

	resp, err := svc.BuildQuote(context.Background(), baseRequest(), false)
	require.NoError(t, err)

	assert.Equal(t, 0.0, resp.Delivery.BillableMiles)
	assert.Equal(t, int64(2500), resp.Delivery.TotalCents)
}

func TestBuildQuoteExtras(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	// per-unit: 2 x 15000; per-day: 1 x 3 days x 2500; flat: 5000 once
	req := baseRequest()
	req.Extras = []models.QuoteExtra{
		{ExtraID: "handwash", Quantity: 2},
		{ExtraID: "pump-out", Quantity: 1},
		{ExtraID: "damage-waiver", Quantity: 1},
	}

	resp, err := svc.BuildQuote(context.Background(), req, false)
	require.NoError(t, err)

	require.Len(t, resp.LineItems, 5)
	assert.Equal(t, int64(30000), resp.LineItems[2].ExtendedCents)
	assert.Equal(t, int64(7500), resp.LineItems[3].ExtendedCents)
	assert.Equal(t, int64(5000), resp.LineItems[4].ExtendedCents)

	var sum int64
	for _, li := range resp.LineItems {
		sum += li.ExtendedCents
	}
	assert.Equal(t, sum, resp.SubtotalCents)
}

func TestBuildQuoteExtraErrors(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	cases := []struct {
		name   string
		extras []models.QuoteExtra
		want   error
	}{
		{"unknown extra fails whole quote", []models.QuoteExtra{{ExtraID: "confetti-cannon", Quantity: 1}}, utils.ErrExtraNotFound},
		{"flat extra with quantity 2", []models.QuoteExtra{{ExtraID: "damage-waiver", Quantity: 2}}, utils.ErrInvalidRequest},
		{"quantity above max", []models.QuoteExtra{{ExtraID: "handwash", Quantity: 5}}, utils.ErrInvalidRequest},
		{"zero quantity", []models.QuoteExtra{{ExtraID: "handwash", Quantity: 0}}, utils.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest()
			req.Extras = tc.extras
			_, err := svc.BuildQuote(context.Background(), req, false)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBuildQuoteTierBoundaries(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(5))

	cases := []struct {
		days      int
		tierLabel string
		cents     int64
	}{
		{1, "daily", 10000},
		{6, "daily", 60000},
		// Lower bound inclusive: day 7 falls in the weekly tier.
		{7, "weekly", 60000},
		// 3 full weeks + 6 remainder days at the weekly per-day equivalent.
		{27, "weekly", 231429},
		{28, "monthly", 240000},
	}
	for _, tc := range cases {
		req := baseRequest()
		req.RentalDays = tc.days
		resp, err := svc.BuildQuote(context.Background(), req, false)
		require.NoError(t, err, "days=%d", tc.days)
		assert.Equal(t, tc.tierLabel, resp.Rental.TierLabel, "days=%d", tc.days)
		assert.Equal(t, tc.cents, resp.LineItems[0].ExtendedCents, "days=%d", tc.days)
	}
}

func TestBuildQuotePerDayProration(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(5))

	req := baseRequest()
	req.RentalDays = 10

	resp, err := svc.BuildQuote(context.Background(), req, false)
	require.NoError(t, err)

	// One full week plus 3 days at the weekly per-day equivalent,
	// remainder rounded up to the next cent.
	assert.Equal(t, 1, resp.Rental.FullUnits)
	assert.Equal(t, 3, resp.Rental.RemainderDays)
	assert.Equal(t, int64(60000+25715), resp.LineItems[0].ExtendedCents)
}

func TestBuildQuoteFullUnitProration(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(5))

	req := baseRequest()
	req.ProductID = "trailer-lux"
	req.UsageCategory = models.UsageEvent
	req.RentalDays = 8

	resp, err := svc.BuildQuote(context.Background(), req, false)
	require.NoError(t, err)

	// 8 days rounds up to 2 whole weeks.
	assert.Equal(t, 2, resp.LineItems[0].Quantity)
	assert.Equal(t, int64(140000), resp.LineItems[0].ExtendedCents)
	assert.Equal(t, 0, resp.Rental.RemainderDays)
}

func TestBuildQuoteCostMonotonicInDays(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(5))

	var prev int64
	for days := 1; days <= 40; days++ {
		req := baseRequest()
		req.RentalDays = days
		resp, err := svc.BuildQuote(context.Background(), req, false)
		require.NoError(t, err, "days=%d", days)
		assert.GreaterOrEqual(t, resp.LineItems[0].ExtendedCents, prev,
			"renting %d days must not cost less than %d days", days, days-1)
		prev = resp.LineItems[0].ExtendedCents
	}
}

func TestBuildQuoteSeasonalMultiplier(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	req := baseRequest()
	req.StartDate = "2026-06-10" // summer-peak, rental only

	resp, err := svc.BuildQuote(context.Background(), req, false)
	require.NoError(t, err)

	assert.Equal(t, "summer-peak", resp.Rental.SeasonalTier)
	assert.Equal(t, int64(37500), resp.LineItems[0].ExtendedCents) // 30000 x 1.25
	assert.Equal(t, int64(12500), resp.Delivery.TotalCents)        // unmultiplied
	assert.False(t, resp.Delivery.SeasonalApplied)
}

func TestBuildQuoteSeasonalPriorityWins(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	req := baseRequest()
	req.StartDate = "2026-07-04" // inside both summer-peak and holiday

	resp, err := svc.BuildQuote(context.Background(), req, false)
	require.NoError(t, err)

	assert.Equal(t, "holiday", resp.Rental.SeasonalTier)
	assert.Equal(t, int64(45000), resp.LineItems[0].ExtendedCents) // 30000 x 1.5
	assert.True(t, resp.Delivery.SeasonalApplied)
	assert.Equal(t, int64(18750), resp.Delivery.TotalCents) // 12500 x 1.5
}

func TestBuildQuoteProductErrors(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	req := baseRequest()
	req.ProductID = "trailer-unknown"
	_, err := svc.BuildQuote(context.Background(), req, false)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	req = baseRequest()
	req.ProductID = "trailer-old" // inactive
	_, err = svc.BuildQuote(context.Background(), req, false)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	req = baseRequest()
	req.ProductID = "trailer-lux" // event only
	req.UsageCategory = models.UsageCommercial
	_, err = svc.BuildQuote(context.Background(), req, false)
	assert.ErrorIs(t, err, utils.ErrUsageNotSupported)
}

func TestBuildQuoteRequestValidation(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	mutate := []func(*models.QuoteRequest){
		func(r *models.QuoteRequest) { r.DeliveryAddress = "" },
		func(r *models.QuoteRequest) { r.ProductID = "" },
		func(r *models.QuoteRequest) { r.RentalDays = 0 },
		func(r *models.QuoteRequest) { r.RentalDays = -2 },
		func(r *models.QuoteRequest) { r.UsageCategory = "residential" },
		func(r *models.QuoteRequest) { r.StartDate = "07/04/2026" },
	}
	for i, m := range mutate {
		req := baseRequest()
		m(req)
		_, err := svc.BuildQuote(context.Background(), req, false)
		assert.ErrorIs(t, err, utils.ErrInvalidRequest, "case %d", i)
	}
}

func TestBuildQuoteStaleCatalog(t *testing.T) {
	snap := testSnapshot()
	snap.FetchedAt = time.Now().Add(-2 * time.Hour)

	svc := NewQuoteService(
		&fakeSnapshotSource{snap: snap},
		&fakeDistanceResolver{result: testDistance(30)},
		time.Hour,
	)

	_, err := svc.BuildQuote(context.Background(), baseRequest(), false)
	assert.ErrorIs(t, err, utils.ErrCatalogStale)
}

func TestBuildQuoteCatalogUnavailable(t *testing.T) {
	svc := NewQuoteService(
		&fakeSnapshotSource{err: utils.ErrCatalogUnavailable},
		&fakeDistanceResolver{result: testDistance(30)},
		0,
	)

	_, err := svc.BuildQuote(context.Background(), baseRequest(), false)
	assert.ErrorIs(t, err, utils.ErrCatalogUnavailable)
}

func TestBuildQuoteDistanceErrorPropagates(t *testing.T) {
	svc := NewQuoteService(
		&fakeSnapshotSource{snap: testSnapshot()},
		&fakeDistanceResolver{err: utils.ErrUpstreamTimeout},
		0,
	)

	_, err := svc.BuildQuote(context.Background(), baseRequest(), false)
	assert.ErrorIs(t, err, utils.ErrUpstreamTimeout)
}

func TestBuildQuoteSandboxFlag(t *testing.T) {
	svc := newTestQuoteService(testSnapshot(), testDistance(30))

	resp, err := svc.BuildQuote(context.Background(), baseRequest(), true)
	require.NoError(t, err)
	assert.True(t, resp.Meta.Sandbox)
}
