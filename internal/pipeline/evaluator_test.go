package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wohnwert/wohnwert/internal/criteria"
	"github.com/wohnwert/wohnwert/internal/feed"
	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/mortgage"
	"github.com/wohnwert/wohnwert/internal/profile"
	"github.com/wohnwert/wohnwert/internal/scoring"
	"github.com/wohnwert/wohnwert/internal/store"
	"github.com/wohnwert/wohnwert/internal/validate"
)

type reachableAlways struct{}

func (reachableAlways) IsReachable(ctx context.Context, url string) bool { return true }

func newTestEvaluator(t *testing.T) (*Evaluator, *store.MemoryStore) {
	t.Helper()

	catalog, err := criteria.NewCatalog(criteria.DefaultSpecs())
	require.NoError(t, err)

	registry := profile.NewRegistry(catalog)
	for _, p := range profile.DefaultProfiles() {
		require.NoError(t, registry.Register(p))
	}

	mem := store.NewMemory()
	ev := NewEvaluator(
		validate.NewValidator(validate.DefaultBands(), reachableAlways{}),
		scoring.NewEngine(catalog),
		mortgage.NewCalculator(mortgage.DefaultParams()),
		registry,
		mem,
	)
	return ev, mem
}

func TestEvaluator_Run_FullPass(t *testing.T) {
	ev, mem := newTestEvaluator(t)
	ctx := context.Background()

	listings := []model.Listing{
		{
			URL:        "https://example.com/a",
			Source:     "willhaben",
			District:   model.String("1040"),
			PriceTotal: model.Float64(420000),
			AreaM2:     model.Float64(84),
			Rooms:      model.Float64(3),
			YearBuilt:  model.Float64(2010),
		},
		{
			URL:        "https://example.com/junk",
			Source:     "willhaben",
			PriceTotal: model.Float64(900), // implausibly cheap
			AreaM2:     model.Float64(45),
		},
	}

	report, err := ev.Run(ctx, "default", listings)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "default", report.Profile)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 0, report.Failed)

	good, err := mem.FindByIdentity(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, good.Valid)
	require.NotNil(t, good.Score)
	assert.GreaterOrEqual(t, *good.Score, 0.0)
	assert.LessOrEqual(t, *good.Score, 100.0)
	assert.NotEmpty(t, good.Breakdown)
	require.NotNil(t, good.PricePerM2)
	assert.InDelta(t, 5000, *good.PricePerM2, 0.01)
	require.NotNil(t, good.Financials)
	assert.Greater(t, good.Financials.MonthlyTotal, 0.0)

	// Invalid listings are flagged and persisted, never dropped.
	junk, err := mem.FindByIdentity(ctx, "https://example.com/junk")
	require.NoError(t, err)
	assert.False(t, junk.Valid)
	assert.NotEmpty(t, junk.InvalidReasons)
	assert.NotNil(t, junk.Score)
}

func TestEvaluator_Run_UnknownProfile(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	_, err := ev.Run(context.Background(), "oligarch", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
}

func TestEvaluator_Run_SetsContentHash(t *testing.T) {
	ev, mem := newTestEvaluator(t)
	ctx := context.Background()

	listings := []model.Listing{{
		URL:        "https://example.com/a",
		District:   model.String("1040"),
		PriceTotal: model.Float64(300000),
		AreaM2:     model.Float64(60),
	}}

	_, err := ev.Run(ctx, "default", listings)
	require.NoError(t, err)

	got, err := mem.FindByIdentity(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ContentHash)

	// The hash is a secondary identity key.
	byHash, err := mem.FindByIdentity(ctx, got.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, got.URL, byHash.URL)
}

// TestEvaluator_EndToEndSelection drives a pass through evaluation and
// selection with a single-criterion catalog so scores are exact.
func TestEvaluator_EndToEndSelection(t *testing.T) {
	ctx := context.Background()

	catalog, err := criteria.NewCatalog([]criteria.Spec{{
		Name:      "area_m2",
		Min:       0,
		Max:       100,
		Direction: criteria.HigherIsBetter,
		Missing:   criteria.MissingWorst,
	}})
	require.NoError(t, err)

	registry := profile.NewRegistry(catalog)
	require.NoError(t, registry.Register(profile.Profile{
		Key:     "area_only",
		Name:    "Area only",
		Weights: map[string]float64{"area_m2": 1.0},
	}))

	mem := store.NewMemory()
	ev := NewEvaluator(
		validate.NewValidator(validate.DefaultBands(), nil),
		scoring.NewEngine(catalog),
		mortgage.NewCalculator(mortgage.DefaultParams()),
		registry,
		mem,
	)

	listings := []model.Listing{
		{URL: "https://example.com/s30", District: model.String("1040"), PriceTotal: model.Float64(150000), AreaM2: model.Float64(30)},
		{URL: "https://example.com/s45", District: model.String("1050"), PriceTotal: model.Float64(220000), AreaM2: model.Float64(45)},
		{URL: "https://example.com/s60", District: model.String("1100"), PriceTotal: model.Float64(300000), AreaM2: model.Float64(60)},
	}

	report, err := ev.Run(ctx, "area_only", listings)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Evaluated)

	sel := feed.NewSelector(mem)
	got, err := sel.Select(ctx, "area_only", feed.Filter{
		MinScore:          40,
		ExcludedDistricts: []string{"1100"},
		Limit:             2,
	})
	require.NoError(t, err)

	// 60 sits in the excluded district and 30 is under the floor.
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/s45", got[0].URL)
	assert.Equal(t, 45.0, *got[0].Score)
}
