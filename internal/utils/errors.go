package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidToken  = errors.New("INVALID_TOKEN")
	ErrInvalidClient = errors.New("INVALID_CLIENT")
	ErrInvalidIP     = errors.New("INVALID_IP")

	ErrInvalidRequest     = errors.New("INVALID_REQUEST")
	ErrProductNotFound    = errors.New("PRODUCT_NOT_FOUND")
	ErrExtraNotFound      = errors.New("EXTRA_NOT_FOUND")
	ErrUsageNotSupported  = errors.New("USAGE_NOT_SUPPORTED")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
	ErrCatalogStale       = errors.New("CATALOG_STALE")
	ErrUpstreamFailed     = errors.New("UPSTREAM_FAILED")
	ErrUpstreamTimeout    = errors.New("UPSTREAM_TIMEOUT")
)
