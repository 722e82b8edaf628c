package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRangeParsesValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/sheet-123/values/Products", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"range": "Products!A1:C3",
			"values": [
				["id", "name", "unit_rate"],
				["trailer-std", "Standard Trailer", 125.5],
				["trailer-ada", "ADA Trailer", true]
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sheet-123", "secret")
	rows, err := c.GetRange(context.Background(), "Products")
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "unit_rate"}, rows[0])
	// Numeric and boolean cells come back as their canonical string forms.
	assert.Equal(t, "125.5", rows[1][2])
	assert.Equal(t, "true", rows[2][2])
}

func TestGetRangeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "The caller does not have permission"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sheet-123", "secret")
	_, err := c.GetRange(context.Background(), "Products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not have permission")
}

func TestGetRangeBadStatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sheet-123", "secret")
	_, err := c.GetRange(context.Background(), "Products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestGetRangeEmptyTab(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"range": "Empty!A1:Z1000"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sheet-123", "secret")
	rows, err := c.GetRange(context.Background(), "Empty")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
