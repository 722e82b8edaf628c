package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSeasonForPrefersHigherPriority(t *testing.T) {
	snap := &CatalogSnapshot{Seasons: []SeasonalTier{
		{Name: "summer", Priority: 10, StartDate: day("2026-06-01"), EndDate: day("2026-08-31"), Multiplier: 1.25},
		{Name: "holiday", Priority: 20, StartDate: day("2026-07-01"), EndDate: day("2026-07-10"), Multiplier: 1.5},
	}}

	got := snap.SeasonFor(day("2026-07-04"))
	require.NotNil(t, got)
	assert.Equal(t, "holiday", got.Name)

	got = snap.SeasonFor(day("2026-06-15"))
	require.NotNil(t, got)
	assert.Equal(t, "summer", got.Name)

	assert.Nil(t, snap.SeasonFor(day("2026-01-15")))
}

func TestSeasonForTieBreaksOnName(t *testing.T) {
	snap := &CatalogSnapshot{Seasons: []SeasonalTier{
		{Name: "zeta", Priority: 10, StartDate: day("2026-06-01"), EndDate: day("2026-06-30"), Multiplier: 1.1},
		{Name: "alpha", Priority: 10, StartDate: day("2026-06-01"), EndDate: day("2026-06-30"), Multiplier: 1.2},
	}}

	got := snap.SeasonFor(day("2026-06-10"))
	require.NotNil(t, got)
	assert.Equal(t, "alpha", got.Name)
}

func TestSeasonalTierContainsInclusiveBounds(t *testing.T) {
	tier := SeasonalTier{StartDate: day("2026-06-01"), EndDate: day("2026-06-30")}

	assert.True(t, tier.Contains(day("2026-06-01")))
	assert.True(t, tier.Contains(day("2026-06-30")))
	assert.False(t, tier.Contains(day("2026-05-31")))
	assert.False(t, tier.Contains(day("2026-07-01")))

	// Time-of-day on the query date is irrelevant.
	assert.True(t, tier.Contains(day("2026-06-30").Add(23*time.Hour)))
}

func TestCatalogSnapshotJSONRoundTrip(t *testing.T) {
	// The snapshot is published and read back as one JSON value; every field
	// must survive that trip unchanged.
	prev := day("2026-08-01").Add(6 * time.Hour)
	snap := &CatalogSnapshot{
		Version:           "7c2f7a1e",
		FetchedAt:         day("2026-08-02").Add(12 * time.Hour),
		PreviousVersion:   "1b9d4c3a",
		PreviousFetchedAt: &prev,
		Products: []Product{{
			ID:              "trailer-std",
			Name:            "Standard Restroom Trailer",
			UsageCategories: []UsageCategory{UsageCommercial, UsageEvent},
			ADA:             true,
			HasPower:        true,
			HasWater:        false,
			Proration:       ProrationFullUnit,
			IsActive:        true,
			RateTiers: []RateTier{
				{Label: "daily", MinDays: 1, MaxDays: 7, UnitDays: 1, UnitRateCents: 10000},
				{Label: "weekly", MinDays: 7, MaxDays: 0, UnitDays: 7, UnitRateCents: 60000},
			},
		}},
		Extras: []ExtraItem{
			{ID: "handwash", Name: "Handwash Station", UnitPriceCents: 15000, Basis: BasisPerUnit, MinQty: 1, MaxQty: 4},
			{ID: "damage-waiver", Name: "Damage Waiver", UnitPriceCents: 5000, Basis: BasisFlat},
		},
		Branches: []Branch{
			{ID: "b1", Name: "North Yard", Address: "100 Depot Rd", ServiceRadiusMiles: 75.5},
		},
		Delivery: DeliveryRule{FreeMiles: 10, PerMileCents: 500, BaseFeeCents: 2500},
		Seasons: []SeasonalTier{
			{Name: "summer", Priority: 10, StartDate: day("2026-06-01"), EndDate: day("2026-08-31"), Multiplier: 1.25, AppliesToDelivery: true},
		},
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var got CatalogSnapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *snap, got)
}

func TestProductSupportsUsage(t *testing.T) {
	p := Product{UsageCategories: []UsageCategory{UsageEvent}}

	assert.True(t, p.SupportsUsage(UsageEvent))
	assert.False(t, p.SupportsUsage(UsageCommercial))
}
