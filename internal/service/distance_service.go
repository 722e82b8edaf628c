package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/cache"
	"github.com/PrivvyRentals/pricing_api/internal/models"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
	"github.com/PrivvyRentals/pricing_api/pkg/routes"
)

// distanceStore caches resolved branch->address distances.
type distanceStore interface {
	Get(ctx context.Context, branchID, address string) (*models.DistanceCacheEntry, error)
	Set(ctx context.Context, entry *models.DistanceCacheEntry) error
}

// routeAPI resolves travel distance from each origin to a destination.
type routeAPI interface {
	Distances(ctx context.Context, origins []string, destination string) ([]routes.Leg, error)
}

// DistanceService resolves the nearest service branch for a delivery address
// through a read-through cache. The external API is only called for branches
// without a fresh cache entry, and at most twice (one retry) per resolution.
type DistanceService struct {
	store distanceStore
	api   routeAPI
}

// NewDistanceService constructs a DistanceService.
func NewDistanceService(store distanceStore, api routeAPI) *DistanceService {
	return &DistanceService{store: store, api: api}
}

// Resolve returns the branch with the smallest travel distance to the
// address. Ties break on branch id so the answer is deterministic. CacheHit
// is set when no external call was needed.
func (s *DistanceService) Resolve(ctx context.Context, branches []models.Branch, address string) (*models.DistanceResult, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("%w: no service branches in catalog", utils.ErrCatalogUnavailable)
	}

	type candidate struct {
		branch models.Branch
		miles  float64
		secs   int
	}
	var candidates []candidate
	var missing []models.Branch

	for _, b := range branches {
		entry, err := s.store.Get(ctx, b.ID, address)
		switch {
		case err == nil:
			candidates = append(candidates, candidate{branch: b, miles: entry.DistanceMiles, secs: entry.DurationSeconds})
		case errors.Is(err, cache.ErrNotFound):
			missing = append(missing, b)
		default:
			// Cache trouble is not fatal; resolve the branch upstream.
			log.Warn().Err(err).Str("branch", b.ID).Msg("Distance cache read failed")
			missing = append(missing, b)
		}
	}

	cacheHit := len(missing) == 0

	if len(missing) > 0 {
		origins := make([]string, len(missing))
		for i, b := range missing {
			origins[i] = b.Address
		}

		legs, err := s.callWithRetry(ctx, origins, address)
		if err != nil {
			return nil, err
		}

		for i, leg := range legs {
			if !leg.OK {
				log.Warn().Str("branch", missing[i].ID).Str("address", address).Msg("Branch unroutable to address")
				continue
			}
			candidates = append(candidates, candidate{branch: missing[i], miles: leg.DistanceMiles, secs: leg.DurationSeconds})

			entry := &models.DistanceCacheEntry{
				BranchID:        missing[i].ID,
				Address:         address,
				DistanceMiles:   leg.DistanceMiles,
				DurationSeconds: leg.DurationSeconds,
			}
			// Concurrent resolutions race benignly here: every writer
			// computed the same answer for the same pair.
			if err := s.store.Set(ctx, entry); err != nil {
				log.Warn().Err(err).Str("branch", missing[i].ID).Msg("Distance cache write failed")
			}
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no branch can reach %q", utils.ErrUpstreamFailed, address)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.miles < best.miles || (c.miles == best.miles && c.branch.ID < best.branch.ID) {
			best = c
		}
	}

	return &models.DistanceResult{
		Branch:          best.branch,
		DistanceMiles:   best.miles,
		DurationSeconds: best.secs,
		CacheHit:        cacheHit,
	}, nil
}

// Prefetch warms the distance cache for an address in the background. It is
// best effort: failures are logged, never surfaced. The detached context
// keeps the work alive after the triggering HTTP request completes.
func (s *DistanceService) Prefetch(branches []models.Branch, address string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := s.Resolve(ctx, branches, address); err != nil {
			log.Warn().Err(err).Str("address", address).Msg("Distance prefetch failed")
			return
		}
		log.Debug().Str("address", address).Msg("Distance prefetch completed")
	}()
}

// callWithRetry performs the upstream call with a single retry. Each attempt
// is bounded by the client's request timeout; the caller's ctx cancels both.
func (s *DistanceService) callWithRetry(ctx context.Context, origins []string, address string) ([]routes.Leg, error) {
	legs, err := s.api.Distances(ctx, origins, address)
	if err == nil {
		return legs, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrUpstreamTimeout, err)
	}

	log.Warn().Err(err).Msg("Distance API call failed, retrying once")
	legs, err = s.api.Distances(ctx, origins, address)
	if err == nil {
		return legs, nil
	}
	if isTimeout(err) || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrUpstreamTimeout, err)
	}
	return nil, fmt.Errorf("%w: %v", utils.ErrUpstreamFailed, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
