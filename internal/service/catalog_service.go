package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// Tab names in the external spreadsheet. Each tab has a header row followed
// by data rows; the header must match the expected schema exactly.
const (
	tabProducts = "Products"
	tabRates    = "Rates"
	tabExtras   = "Extras"
	tabBranches = "Branches"
	tabDelivery = "Delivery"
	tabSeasons  = "Seasons"
)

// sheetSource fetches raw tabular rows from the external config source.
type sheetSource interface {
	GetRange(ctx context.Context, rangeName string) ([][]string, error)
}

// snapshotStore publishes and reads the active catalog snapshot.
type snapshotStore interface {
	SetSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error
	GetSnapshot(ctx context.Context) (*models.CatalogSnapshot, error)
}

// snapshotArchiver persists published snapshots for audit. Best effort.
type snapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error
}

// CatalogService syncs the pricing catalog from the external tabular source
// into the shared snapshot store. A failed fetch or validation leaves the
// previously published snapshot untouched; the quoting engine keeps serving
// from the last known-good data.
type CatalogService struct {
	source   sheetSource
	store    snapshotStore
	archiver snapshotArchiver // nil when archiving is disabled

	// Serializes concurrent syncs (periodic worker + admin trigger).
	mu sync.Mutex
}

// NewCatalogService constructs a CatalogService. archiver may be nil.
func NewCatalogService(source sheetSource, store snapshotStore, archiver snapshotArchiver) *CatalogService {
	return &CatalogService{source: source, store: store, archiver: archiver}
}

// Current returns the active catalog snapshot.
func (s *CatalogService) Current(ctx context.Context) (*models.CatalogSnapshot, error) {
	snap, err := s.store.GetSnapshot(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, utils.ErrCatalogUnavailable
		}
		return nil, err
	}
	return snap, nil
}

// Sync runs one full fetch -> validate -> publish cycle and returns the newly
// published snapshot. Any error means nothing was published.
func (s *CatalogService) Sync(ctx context.Context) (*models.CatalogSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.fetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed: %w", err)
	}

	snap, err := buildSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	// Retain the previous snapshot's identity for audit/rollback.
	if prev, err := s.store.GetSnapshot(ctx); err == nil {
		snap.PreviousVersion = prev.Version
		t := prev.FetchedAt
		snap.PreviousFetchedAt = &t
	}

	if err := s.store.SetSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("catalog publish failed: %w", err)
	}

	log.Info().
		Str("version", snap.Version).
		Int("products", len(snap.Products)).
		Int("extras", len(snap.Extras)).
		Int("branches", len(snap.Branches)).
		Int("seasons", len(snap.Seasons)).
		Msg("Catalog snapshot published")

	if s.archiver != nil {
		if err := s.archiver.ArchiveSnapshot(ctx, snap); err != nil {
			log.Warn().Err(err).Str("version", snap.Version).Msg("Snapshot archive failed")
		}
	}

	return snap, nil
}

// rawCatalog holds the fetched rows of every tab, headers stripped.
type rawCatalog struct {
	products [][]string
	rates    [][]string
	extras   [][]string
	branches [][]string
	delivery [][]string
	seasons  [][]string
}

// fetchAll pulls every tab with a bounded retry: transient source failures
// are common right after a spreadsheet edit.
func (s *CatalogService) fetchAll(ctx context.Context) (*rawCatalog, error) {
	const (
		maxAttempts = 3
		baseDelay   = 500 * time.Millisecond
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.fetchOnce(ctx)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("Catalog fetch attempt failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(baseDelay << (attempt - 1)):
		}
	}
	return nil, lastErr
}

func (s *CatalogService) fetchOnce(ctx context.Context) (*rawCatalog, error) {
	raw := &rawCatalog{}
	for _, t := range []struct {
		tab    string
		header []string
		dest   *[][]string
	}{
		{tabProducts, productHeader, &raw.products},
		{tabRates, rateHeader, &raw.rates},
		{tabExtras, extraHeader, &raw.extras},
		{tabBranches, branchHeader, &raw.branches},
		{tabDelivery, deliveryHeader, &raw.delivery},
		{tabSeasons, seasonHeader, &raw.seasons},
	} {
		rows, err := s.source.GetRange(ctx, t.tab)
		if err != nil {
			return nil, fmt.Errorf("tab %s: %w", t.tab, err)
		}
		body, err := stripHeader(rows, t.header)
		if err != nil {
			return nil, fmt.Errorf("tab %s: %w", t.tab, err)
		}
		*t.dest = body
	}
	return raw, nil
}

// Expected header rows, one per tab. Column order is part of the contract.
var (
	productHeader  = []string{"id", "name", "usage_categories", "ada", "power", "water", "proration", "active"}
	rateHeader     = []string{"product_id", "label", "min_days", "max_days", "unit_days", "unit_rate"}
	extraHeader    = []string{"id", "name", "unit_price", "basis", "min_qty", "max_qty"}
	branchHeader   = []string{"id", "name", "address", "service_radius_miles"}
	deliveryHeader = []string{"free_miles", "per_mile_rate", "base_fee"}
	seasonHeader   = []string{"name", "priority", "start_date", "end_date", "multiplier", "applies_to_delivery"}
)

// stripHeader verifies the header row and returns the data rows.
func stripHeader(rows [][]string, expected []string) ([][]string, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty tab")
	}
	header := rows[0]
	if len(header) < len(expected) {
		return nil, fmt.Errorf("header has %d columns, want %d", len(header), len(expected))
	}
	for i, want := range expected {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return rows[1:], nil
}

// buildSnapshot parses and validates all rows into an internally consistent
// snapshot. Any invalid row rejects the whole batch; there are no partial
// catalog updates.
func buildSnapshot(raw *rawCatalog) (*models.CatalogSnapshot, error) {
	v := &rowValidator{}

	products := parseProducts(raw.products, v)
	attachRates(products, raw.rates, v)
	extras := parseExtras(raw.extras, v)
	branches := parseBranches(raw.branches, v)
	delivery := parseDelivery(raw.delivery, v)
	seasons := parseSeasons(raw.seasons, v)

	if err := v.err(); err != nil {
		return nil, err
	}

	return &models.CatalogSnapshot{
		Version:   uuid.New().String(),
		FetchedAt: time.Now().UTC(),
		Products:  products,
		Extras:    extras,
		Branches:  branches,
		Delivery:  delivery,
		Seasons:   seasons,
	}, nil
}

// rowValidator accumulates row-level errors so one pass reports everything.
type rowValidator struct {
	problems []string
}

func (v *rowValidator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *rowValidator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	const maxShown = 8
	shown := v.problems
	suffix := ""
	if len(shown) > maxShown {
		suffix = fmt.Sprintf(" (and %d more)", len(shown)-maxShown)
		shown = shown[:maxShown]
	}
	return errors.New(strings.Join(shown, "; ") + suffix)
}

func parseProducts(rows [][]string, v *rowValidator) []models.Product {
	products := make([]models.Product, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		ref := fmt.Sprintf("Products row %d", i+2)
		if len(row) < len(productHeader) {
			v.addf("%s: has %d columns, want %d", ref, len(row), len(productHeader))
			continue
		}
		p := models.Product{
			ID:   strings.TrimSpace(row[0]),
			Name: strings.TrimSpace(row[1]),
		}
		if p.ID == "" {
			v.addf("%s: empty id", ref)
			continue
		}
		if seen[p.ID] {
			v.addf("%s: duplicate product id %q", ref, p.ID)
			continue
		}
		seen[p.ID] = true
		if p.Name == "" {
			v.addf("%s: empty name", ref)
		}
		for _, u := range strings.Split(row[2], ",") {
			switch models.UsageCategory(strings.TrimSpace(strings.ToLower(u))) {
			case models.UsageCommercial:
				p.UsageCategories = append(p.UsageCategories, models.UsageCommercial)
			case models.UsageEvent:
				p.UsageCategories = append(p.UsageCategories, models.UsageEvent)
			default:
				v.addf("%s: unknown usage category %q", ref, u)
			}
		}
		p.ADA = parseBoolCell(row[3], ref, "ada", v)
		p.HasPower = parseBoolCell(row[4], ref, "power", v)
		p.HasWater = parseBoolCell(row[5], ref, "water", v)
		switch models.ProrationPolicy(strings.TrimSpace(strings.ToLower(row[6]))) {
		case models.ProrationPerDay, "":
			p.Proration = models.ProrationPerDay
		case models.ProrationFullUnit:
			p.Proration = models.ProrationFullUnit
		default:
			v.addf("%s: unknown proration policy %q", ref, row[6])
		}
		p.IsActive = parseBoolCell(row[7], ref, "active", v)
		products = append(products, p)
	}
	return products
}

// attachRates parses the Rates tab and attaches tiers to their products,
// enforcing referential integrity and the tier-boundary contract: brackets
// are ascending, contiguous, start at day 1, lower bound inclusive, upper
// bound exclusive, and only the last bracket may be open-ended.
func attachRates(products []models.Product, rows [][]string, v *rowValidator) {
	byID := map[string]*models.Product{}
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for i, row := range rows {
		ref := fmt.Sprintf("Rates row %d", i+2)
		if len(row) < len(rateHeader) {
			v.addf("%s: has %d columns, want %d", ref, len(row), len(rateHeader))
			continue
		}
		productID := strings.TrimSpace(row[0])
		p, ok := byID[productID]
		if !ok {
			v.addf("%s: references unknown product %q", ref, productID)
			continue
		}
		tier := models.RateTier{Label: strings.TrimSpace(row[1])}
		tier.MinDays = parseIntCell(row[2], ref, "min_days", v)
		tier.MaxDays = parseIntCell(row[3], ref, "max_days", v)
		tier.UnitDays = parseIntCell(row[4], ref, "unit_days", v)
		tier.UnitRateCents = parseCentsCell(row[5], ref, "unit_rate", v)
		if tier.Label == "" {
			v.addf("%s: empty label", ref)
		}
		if tier.UnitDays < 1 {
			v.addf("%s: unit_days must be >= 1", ref)
		}
		if tier.UnitRateCents <= 0 {
			v.addf("%s: unit_rate must be > 0", ref)
		}
		p.RateTiers = append(p.RateTiers, tier)
	}

	for i := range products {
		p := &products[i]
		if len(p.RateTiers) == 0 {
			v.addf("product %q has no rate tiers", p.ID)
			continue
		}
		sort.Slice(p.RateTiers, func(a, b int) bool {
			return p.RateTiers[a].MinDays < p.RateTiers[b].MinDays
		})
		if p.RateTiers[0].MinDays != 1 {
			v.addf("product %q: first rate tier must start at day 1", p.ID)
		}
		for t := 0; t < len(p.RateTiers); t++ {
			tier := p.RateTiers[t]
			last := t == len(p.RateTiers)-1
			if !last {
				if tier.MaxDays == 0 {
					v.addf("product %q: only the last tier may be open-ended", p.ID)
				} else if p.RateTiers[t+1].MinDays != tier.MaxDays {
					v.addf("product %q: tier %q not contiguous with the next", p.ID, tier.Label)
				}
			}
			if tier.MaxDays != 0 && tier.MaxDays <= tier.MinDays {
				v.addf("product %q: tier %q has max_days <= min_days", p.ID, tier.Label)
			}
		}
	}
}

func parseExtras(rows [][]string, v *rowValidator) []models.ExtraItem {
	extras := make([]models.ExtraItem, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		ref := fmt.Sprintf("Extras row %d", i+2)
		if len(row) < len(extraHeader) {
			v.addf("%s: has %d columns, want %d", ref, len(row), len(extraHeader))
			continue
		}
		e := models.ExtraItem{
			ID:   strings.TrimSpace(row[0]),
			Name: strings.TrimSpace(row[1]),
		}
		if e.ID == "" {
			v.addf("%s: empty id", ref)
			continue
		}
		if seen[e.ID] {
			v.addf("%s: duplicate extra id %q", ref, e.ID)
			continue
		}
		seen[e.ID] = true
		e.UnitPriceCents = parseCentsCell(row[2], ref, "unit_price", v)
		switch models.ExtraBasis(strings.TrimSpace(strings.ToLower(row[3]))) {
		case models.BasisFlat:
			e.Basis = models.BasisFlat
		case models.BasisPerDay:
			e.Basis = models.BasisPerDay
		case models.BasisPerUnit:
			e.Basis = models.BasisPerUnit
		default:
			v.addf("%s: unknown pricing basis %q", ref, row[3])
		}
		e.MinQty = parseIntCell(row[4], ref, "min_qty", v)
		e.MaxQty = parseIntCell(row[5], ref, "max_qty", v)
		if e.MaxQty != 0 && e.MaxQty < e.MinQty {
			v.addf("%s: max_qty < min_qty", ref)
		}
		extras = append(extras, e)
	}
	return extras
}

func parseBranches(rows [][]string, v *rowValidator) []models.Branch {
	branches := make([]models.Branch, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		ref := fmt.Sprintf("Branches row %d", i+2)
		if len(row) < len(branchHeader) {
			v.addf("%s: has %d columns, want %d", ref, len(row), len(branchHeader))
			continue
		}
		b := models.Branch{
			ID:      strings.TrimSpace(row[0]),
			Name:    strings.TrimSpace(row[1]),
			Address: strings.TrimSpace(row[2]),
		}
		if b.ID == "" {
			v.addf("%s: empty id", ref)
			continue
		}
		if seen[b.ID] {
			v.addf("%s: duplicate branch id %q", ref, b.ID)
			continue
		}
		seen[b.ID] = true
		if b.Address == "" {
			v.addf("%s: empty address", ref)
		}
		b.ServiceRadiusMiles = parseFloatCell(row[3], ref, "service_radius_miles", v)
		branches = append(branches, b)
	}
	if len(branches) == 0 {
		v.addf("Branches tab has no rows")
	}
	return branches
}

func parseDelivery(rows [][]string, v *rowValidator) models.DeliveryRule {
	if len(rows) != 1 {
		v.addf("Delivery tab must have exactly one data row, got %d", len(rows))
		return models.DeliveryRule{}
	}
	row := rows[0]
	const ref = "Delivery row 2"
	if len(row) < len(deliveryHeader) {
		v.addf("%s: has %d columns, want %d", ref, len(row), len(deliveryHeader))
		return models.DeliveryRule{}
	}
	rule := models.DeliveryRule{
		FreeMiles:    parseFloatCell(row[0], ref, "free_miles", v),
		PerMileCents: parseCentsCell(row[1], ref, "per_mile_rate", v),
		BaseFeeCents: parseCentsCell(row[2], ref, "base_fee", v),
	}
	if rule.FreeMiles < 0 {
		v.addf("%s: free_miles must be >= 0", ref)
	}
	if rule.PerMileCents < 0 || rule.BaseFeeCents < 0 {
		v.addf("%s: fees must be >= 0", ref)
	}
	return rule
}

func parseSeasons(rows [][]string, v *rowValidator) []models.SeasonalTier {
	seasons := make([]models.SeasonalTier, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		ref := fmt.Sprintf("Seasons row %d", i+2)
		if len(row) < len(seasonHeader) {
			v.addf("%s: has %d columns, want %d", ref, len(row), len(seasonHeader))
			continue
		}
		t := models.SeasonalTier{Name: strings.TrimSpace(row[0])}
		if t.Name == "" {
			v.addf("%s: empty name", ref)
			continue
		}
		if seen[t.Name] {
			v.addf("%s: duplicate season name %q", ref, t.Name)
			continue
		}
		seen[t.Name] = true
		t.Priority = parseIntCell(row[1], ref, "priority", v)
		t.StartDate = parseDateCell(row[2], ref, "start_date", v)
		t.EndDate = parseDateCell(row[3], ref, "end_date", v)
		t.Multiplier = parseFloatCell(row[4], ref, "multiplier", v)
		t.AppliesToDelivery = parseBoolCell(row[5], ref, "applies_to_delivery", v)
		if t.Multiplier <= 0 {
			v.addf("%s: multiplier must be > 0", ref)
		}
		if !t.StartDate.IsZero() && !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
			v.addf("%s: end_date before start_date", ref)
		}
		seasons = append(seasons, t)
	}
	return seasons
}

// Cell parsers. Each records a problem on the validator and returns the zero
// value; callers never see loosely-typed data past this boundary.

func parseIntCell(s, ref, col string, v *rowValidator) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		v.addf("%s: %s %q is not an integer", ref, col, s)
		return 0
	}
	return n
}

func parseFloatCell(s, ref, col string, v *rowValidator) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v.addf("%s: %s %q is not a number", ref, col, s)
		return 0
	}
	return f
}

func parseBoolCell(s, ref, col string, v *rowValidator) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0", "":
		return false
	default:
		v.addf("%s: %s %q is not a boolean", ref, col, s)
		return false
	}
}

func parseDateCell(s, ref, col string, v *rowValidator) time.Time {
	s = strings.TrimSpace(s)
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		v.addf("%s: %s %q is not a date (want YYYY-MM-DD)", ref, col, s)
		return time.Time{}
	}
	return d
}

// parseCentsCell parses a decimal money string ("125" or "125.50") into
// integer cents exactly. Fractions beyond two decimals are rejected rather
// than rounded: the sheet is the source of truth and must be unambiguous.
func parseCentsCell(s, ref, col string, v *rowValidator) int64 {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return 0
	}
	// Signs are rejected up front: "-0.50" would otherwise slip past a
	// negativity check on the whole part alone.
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		v.addf("%s: %s %q is not a money amount", ref, col, s)
		return 0
	}
	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		v.addf("%s: %s %q is not a money amount", ref, col, s)
		return 0
	}
	cents := n * 100
	if frac != "" {
		if len(frac) > 2 {
			v.addf("%s: %s %q has more than two decimal places", ref, col, s)
			return 0
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			v.addf("%s: %s %q is not a money amount", ref, col, s)
			return 0
		}
		cents += f
	}
	return cents
}
