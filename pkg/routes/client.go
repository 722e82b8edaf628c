package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const metersPerMile = 1609.344

// Client is a minimal HTTP client for a distance-matrix style routing API.
// The per-request timeout is deliberately tight: a quote must fail fast
// rather than hang on a slow upstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	debug      bool
}

// NewClient constructs a routing client. timeout bounds every request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		debug:      os.Getenv("ENV") == "development",
	}
}

// Distances resolves travel distance and duration from each origin to the
// destination in a single call. The returned slice is in origin order; legs
// the upstream could not route have OK=false.
func (c *Client) Distances(ctx context.Context, origins []string, destination string) ([]Leg, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("no origins provided")
	}

	q := url.Values{}
	q.Set("origins", strings.Join(origins, "|"))
	q.Set("destinations", destination)
	q.Set("units", "imperial")
	q.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/distancematrix/json?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Int("origins", len(origins)).
			Int("status_code", resp.StatusCode).
			Dur("latency", time.Since(start)).
			Msg("[ROUTES] Distance matrix response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routes API error: status %d", resp.StatusCode)
	}

	var dm distanceMatrixResponse
	if err := json.Unmarshal(body, &dm); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if dm.Status != "OK" {
		return nil, fmt.Errorf("routes API error: %s %s", dm.Status, dm.ErrorMessage)
	}
	if len(dm.Rows) != len(origins) {
		return nil, fmt.Errorf("routes API returned %d rows for %d origins", len(dm.Rows), len(origins))
	}

	legs := make([]Leg, len(origins))
	for i, row := range dm.Rows {
		legs[i] = Leg{Origin: origins[i]}
		if len(row.Elements) == 0 || row.Elements[0].Status != "OK" {
			continue
		}
		el := row.Elements[0]
		legs[i].DistanceMiles = float64(el.Distance.Value) / metersPerMile
		legs[i].DurationSeconds = el.Duration.Value
		legs[i].OK = true
	}
	return legs, nil
}
