package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadListings_Array(t *testing.T) {
	in := `[
		{"url": "https://example.com/a", "price_total": 420000, "area_m2": 84},
		{"url": "https://example.com/b", "district": "1040"}
	]`

	listings, err := readListings(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "https://example.com/a", listings[0].URL)
	assert.Equal(t, 420000.0, *listings[0].PriceTotal)
	assert.Equal(t, "1040", *listings[1].District)
}

func TestReadListings_NDJSON(t *testing.T) {
	in := `{"url": "https://example.com/a", "rooms": 3}

{"url": "https://example.com/b"}
`

	listings, err := readListings(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, 3.0, *listings[0].Rooms)
}

func TestReadListings_BadLine(t *testing.T) {
	in := `{"url": "https://example.com/a"}
not json
`
	_, err := readListings(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"evaluate", "rank", "notify", "profiles", "migrate", "recheck", "serve"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}
