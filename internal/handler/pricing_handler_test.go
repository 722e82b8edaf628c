package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
	"github.com/PrivvyRentals/pricing_api/pkg/routes"
)

type stubCatalog struct {
	snap *models.CatalogSnapshot
	err  error
}

func (s *stubCatalog) Current(ctx context.Context) (*models.CatalogSnapshot, error) {
	return s.snap, s.err
}

type stubDistance struct {
	result *models.DistanceResult
	err    error
}

func (s *stubDistance) Resolve(ctx context.Context, branches []models.Branch, address string) (*models.DistanceResult, error) {
	return s.result, s.err
}

func quoteSnapshot() *models.CatalogSnapshot {
	return &models.CatalogSnapshot{
		Version:   "v1",
		FetchedAt: time.Now().UTC(),
		Products: []models.Product{{
			ID:              "trailer-std",
			Name:            "Standard Trailer",
			UsageCategories: []models.UsageCategory{models.UsageEvent},
			Proration:       models.ProrationPerDay,
			IsActive:        true,
			RateTiers:       []models.RateTier{{Label: "daily", MinDays: 1, MaxDays: 0, UnitDays: 1, UnitRateCents: 10000}},
		}},
		Branches: []models.Branch{{ID: "b1", Name: "North Yard", Address: "100 Depot Rd"}},
		Delivery: models.DeliveryRule{FreeMiles: 10, PerMileCents: 500, BaseFeeCents: 2500},
	}
}

func quoteRouter(catalogErr, distanceErr error) *gin.Engine {
	gin.SetMode(gin.TestMode)

	catalog := &stubCatalog{snap: quoteSnapshot(), err: catalogErr}
	distance := &stubDistance{
		result: &models.DistanceResult{
			Branch:        models.Branch{ID: "b1", Name: "North Yard"},
			DistanceMiles: 5,
			CacheHit:      true,
		},
		err: distanceErr,
	}
	quoteSvc := service.NewQuoteService(catalog, distance, 0)

	h := &PricingHandler{quoteService: quoteSvc}
	r := gin.New()
	r.POST("/v1/pricing/quote", h.CreateQuote)
	return r
}

func postQuote(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/pricing/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validQuoteBody = `{
	"deliveryAddress": "123 Main St",
	"productId": "trailer-std",
	"startDate": "2026-03-10",
	"rentalDays": 3,
	"usageCategory": "event"
}`

func TestCreateQuoteSuccess(t *testing.T) {
	w := postQuote(t, quoteRouter(nil, nil), validQuoteBody)

	require.Equal(t, http.StatusOK, w.Code)

	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(32500), data["subtotalCents"]) // 30000 rental + 2500 base delivery
}

func TestCreateQuoteMalformedBody(t *testing.T) {
	w := postQuote(t, quoteRouter(nil, nil), `{"productId": 42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// memSnapStore backs a real CatalogService for the prefetch handler tests.
type memSnapStore struct {
	snap *models.CatalogSnapshot
}

func (m *memSnapStore) SetSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error {
	m.snap = snap
	return nil
}

func (m *memSnapStore) GetSnapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	if m.snap == nil {
		return nil, cache.ErrNotFound
	}
	return m.snap, nil
}

// memDistStore is a locked in-memory distance cache; prefetch writes to it
// from a background goroutine.
type memDistStore struct {
	mu      sync.Mutex
	entries map[string]*models.DistanceCacheEntry
}

func (m *memDistStore) Get(ctx context.Context, branchID, address string) (*models.DistanceCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[branchID+"|"+address]; ok {
		return e, nil
	}
	return nil, cache.ErrNotFound
}

func (m *memDistStore) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.BranchID+"|"+entry.Address] = entry
	return nil
}

func (m *memDistStore) has(branchID, address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[branchID+"|"+address]
	return ok
}

type okRouteAPI struct{}

func (okRouteAPI) Distances(ctx context.Context, origins []string, destination string) ([]routes.Leg, error) {
	legs := make([]routes.Leg, len(origins))
	for i, o := range origins {
		legs[i] = routes.Leg{Origin: o, DistanceMiles: 15, DurationSeconds: 1200, OK: true}
	}
	return legs, nil
}

func prefetchRouter(snap *models.CatalogSnapshot) (*gin.Engine, *memDistStore) {
	gin.SetMode(gin.TestMode)

	store := &memDistStore{entries: map[string]*models.DistanceCacheEntry{}}
	catalogSvc := service.NewCatalogService(nil, &memSnapStore{snap: snap}, nil)
	distanceSvc := service.NewDistanceService(store, okRouteAPI{})

	h := NewPricingHandler(nil, catalogSvc, distanceSvc)
	r := gin.New()
	r.POST("/v1/pricing/location/prefetch", h.PrefetchLocation)
	return r, store
}

func postPrefetch(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/pricing/location/prefetch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPrefetchLocationAccepted(t *testing.T) {
	r, store := prefetchRouter(quoteSnapshot())

	w := postPrefetch(t, r, `{"deliveryLocation": "123 Main St"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	// The 202 comes back immediately; the cache fills in the background.
	assert.Eventually(t, func() bool {
		return store.has("b1", "123 Main St")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPrefetchLocationWithoutSnapshot(t *testing.T) {
	// No published catalog: still a 202, the failure stays invisible.
	r, store := prefetchRouter(nil)

	w := postPrefetch(t, r, `{"deliveryLocation": "123 Main St"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.False(t, store.has("b1", "123 Main St"))
}

func TestPrefetchLocationMissingAddress(t *testing.T) {
	r, _ := prefetchRouter(quoteSnapshot())

	w := postPrefetch(t, r, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateQuoteErrorMapping(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		catalogErr  error
		distanceErr error
		wantStatus  int
		wantCode    string
	}{
		{"unknown product", strings.Replace(validQuoteBody, "trailer-std", "nope", 1), nil, nil, 404, "PRODUCT_NOT_FOUND"},
		{"unsupported usage", strings.Replace(validQuoteBody, "event", "commercial", 1), nil, nil, 400, "USAGE_NOT_SUPPORTED"},
		{"catalog unavailable", validQuoteBody, utils.ErrCatalogUnavailable, nil, 503, "CATALOG_UNAVAILABLE"},
		{"upstream timeout", validQuoteBody, nil, utils.ErrUpstreamTimeout, 504, "UPSTREAM_TIMEOUT"},
		{"upstream failed", validQuoteBody, nil, utils.ErrUpstreamFailed, 502, "UPSTREAM_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postQuote(t, quoteRouter(tc.catalogErr, tc.distanceErr), tc.body)
			require.Equal(t, tc.wantStatus, w.Code)

			var resp utils.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}
