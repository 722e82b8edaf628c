package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123 Main St, Springfield", "123-main-st-springfield"},
		{"  123  Main   St  ", "123-main-st"},
		{"123 MAIN ST", "123-main-st"},
		{"Apt. #4, 55 Oak Ave", "apt-4-55-oak-ave"},
		{"", ""},
		{"...", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeAddress(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeAddressEquivalentSpellings(t *testing.T) {
	// Different spellings of the same address must share a cache key.
	a := NormalizeAddress("123 Main St., Springfield")
	b := NormalizeAddress("123  main st springfield")
	assert.Equal(t, a, b)
}
