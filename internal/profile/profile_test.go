package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wohnwert/wohnwert/internal/criteria"
)

func testCatalog(t *testing.T) *criteria.Catalog {
	t.Helper()
	cat, err := criteria.DefaultCatalog()
	require.NoError(t, err)
	return cat
}

func TestRegister_WeightSumValidation(t *testing.T) {
	reg := NewRegistry(testCatalog(t))

	err := reg.Register(Profile{
		Key: "lopsided",
		Weights: map[string]float64{
			"price_per_m2": 0.5,
			"rooms":        0.3,
		},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidProfile))
	assert.Contains(t, err.Error(), "0.8")
}

func TestRegister_UnknownCriterion(t *testing.T) {
	reg := NewRegistry(testCatalog(t))

	err := reg.Register(Profile{
		Key: "mystery",
		Weights: map[string]float64{
			"vibes":        0.5,
			"price_per_m2": 0.5,
		},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidProfile))
	assert.Contains(t, err.Error(), "vibes")
}

func TestRegister_NegativeWeight(t *testing.T) {
	reg := NewRegistry(testCatalog(t))

	err := reg.Register(Profile{
		Key: "negative",
		Weights: map[string]float64{
			"price_per_m2": 1.2,
			"rooms":        -0.2,
		},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidProfile))
}

func TestResolve_UnknownProfile(t *testing.T) {
	reg := NewRegistry(testCatalog(t))

	_, err := reg.Resolve("nobody")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownProfile))
}

func TestResolve_Alias(t *testing.T) {
	reg, err := LoadRegistry(testCatalog(t), "")
	require.NoError(t, err)

	require.NoError(t, reg.Alias("flipper", "diy_renovator"))

	p, err := reg.Resolve("flipper")
	require.NoError(t, err)
	assert.Equal(t, "diy_renovator", p.Key)

	assert.Error(t, reg.Alias("ghost", "no_such_profile"))
}

func TestDefaultProfiles_AllValid(t *testing.T) {
	reg := NewRegistry(testCatalog(t))
	for _, p := range DefaultProfiles() {
		require.NoError(t, reg.Register(p), "persona %s must register cleanly", p.Key)
		assert.InDelta(t, 1.0, p.WeightSum(), 1e-6, "persona %s weight sum", p.Key)
	}

	keys := reg.Keys()
	assert.Contains(t, keys, "default")
	assert.Contains(t, keys, "growing_family")
	assert.Contains(t, keys, "budget_buyer")
	assert.Len(t, keys, 7)
}

func TestRegister_ReplacesWholesale(t *testing.T) {
	reg := NewRegistry(testCatalog(t))

	require.NoError(t, reg.Register(Profile{
		Key:     "p",
		Weights: map[string]float64{"price_per_m2": 1.0},
	}))
	require.NoError(t, reg.Register(Profile{
		Key:     "p",
		Weights: map[string]float64{"rooms": 1.0},
	}))

	p, err := reg.Resolve("p")
	require.NoError(t, err)
	assert.Len(t, p.Weights, 1)
	assert.InDelta(t, 1.0, p.Weights["rooms"], 1e-9)
}

func TestLoadRegistry_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - key: price_hawk
    name: Price Hawk
    weights:
      price_per_m2: 0.7
      ubahn_walk_minutes: 0.3
aliases:
  hawk: price_hawk
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := LoadRegistry(testCatalog(t), path)
	require.NoError(t, err)

	p, err := reg.Resolve("hawk")
	require.NoError(t, err)
	assert.Equal(t, "price_hawk", p.Key)
	assert.Len(t, reg.Keys(), 1, "external file replaces built-ins")
}

func TestLoadRegistry_BadFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - key: broken
    weights:
      price_per_m2: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRegistry(testCatalog(t), path)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidProfile))
}
