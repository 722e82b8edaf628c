package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PrivvyRentals/pricing_api/internal/service"
)

// CatalogSyncWorker periodically refreshes the catalog snapshot from the
// external pricing spreadsheet. Sync failures are logged and retried on the
// next tick; the quoting engine keeps serving from the last good snapshot.
type CatalogSyncWorker struct {
	catalogService *service.CatalogService
	interval       time.Duration
}

// NewCatalogSyncWorker constructs a CatalogSyncWorker.
func NewCatalogSyncWorker(catalogService *service.CatalogService, interval time.Duration) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		catalogService: catalogService,
		interval:       interval,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *CatalogSyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting catalog sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Catalog sync worker stopped")
			return
		}
	}
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	start := time.Now()
	snap, err := w.catalogService.Sync(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Catalog sync failed, keeping previous snapshot")
		return
	}

	log.Info().
		Str("version", snap.Version).
		Dur("duration", time.Since(start)).
		Msg("Catalog sync completed")
}
