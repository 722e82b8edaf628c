package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistancesParsesMatrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distancematrix/json", r.URL.Path)
		assert.Equal(t, "100 Depot Rd|200 Yard Ave", r.URL.Query().Get("origins"))
		assert.Equal(t, "123 Main St", r.URL.Query().Get("destinations"))
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"rows": [
				{"elements": [{"status": "OK", "distance": {"value": 16093}, "duration": {"value": 1200}}]},
				{"elements": [{"status": "ZERO_RESULTS"}]}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	legs, err := c.Distances(context.Background(), []string{"100 Depot Rd", "200 Yard Ave"}, "123 Main St")
	require.NoError(t, err)

	require.Len(t, legs, 2)
	assert.True(t, legs[0].OK)
	// 16093 meters is 10 miles, within float tolerance.
	assert.InDelta(t, 10.0, legs[0].DistanceMiles, 0.01)
	assert.Equal(t, 1200, legs[0].DurationSeconds)
	assert.False(t, legs[1].OK)
}

func TestDistancesUpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "error_message": "quota exceeded"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	_, err := c.Distances(context.Background(), []string{"100 Depot Rd"}, "123 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDistancesRowCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "rows": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	_, err := c.Distances(context.Background(), []string{"100 Depot Rd"}, "123 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 rows for 1 origins")
}

func TestDistancesTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"status": "OK", "rows": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", 50*time.Millisecond)
	start := time.Now()
	_, err := c.Distances(context.Background(), []string{"100 Depot Rd"}, "123 Main St")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestDistancesNoOrigins(t *testing.T) {
	c := NewClient("http://unused", "key", time.Second)
	_, err := c.Distances(context.Background(), nil, "123 Main St")
	require.Error(t, err)
}
