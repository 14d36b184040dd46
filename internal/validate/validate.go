// Package validate checks listings for structural completeness, price
// plausibility and source-URL liveness. Validation is advisory: listings
// are flagged, never deleted, and may transition invalid→valid on re-check.
package validate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wohnwert/wohnwert/internal/model"
)

// ReachabilityChecker probes whether a listing's source URL still resolves
// to a live advert. Implementations live at the I/O boundary.
type ReachabilityChecker interface {
	IsReachable(ctx context.Context, url string) bool
}

// Bands holds the plausibility limits for raw listing data. Observations
// outside them are almost always extraction garbage, not real properties.
type Bands struct {
	MinPriceTotal  float64 `yaml:"min_price_total" mapstructure:"min_price_total"`
	MinAreaM2      float64 `yaml:"min_area_m2" mapstructure:"min_area_m2"`
	MinPricePerM2  float64 `yaml:"min_price_per_m2" mapstructure:"min_price_per_m2"`
	MaxPricePerM2  float64 `yaml:"max_price_per_m2" mapstructure:"max_price_per_m2"`
}

// DefaultBands returns the Vienna plausibility limits.
func DefaultBands() Bands {
	return Bands{
		MinPriceTotal: 50000,
		MinAreaM2:     20,
		MinPricePerM2: 1000,
		MaxPricePerM2: 25000,
	}
}

// Validator runs the per-listing checks.
type Validator struct {
	bands   Bands
	checker ReachabilityChecker
}

// NewValidator creates a validator. checker may be nil to skip liveness.
func NewValidator(bands Bands, checker ReachabilityChecker) *Validator {
	return &Validator{bands: bands, checker: checker}
}

// Validate runs structural, plausibility and liveness checks and returns
// the advisory result. It does not mutate the listing.
func (v *Validator) Validate(ctx context.Context, l *model.Listing) model.ValidityResult {
	var reasons []string

	if l.URL == "" {
		reasons = append(reasons, "url missing")
	}
	if l.PriceTotal == nil && l.AreaM2 == nil {
		reasons = append(reasons, "price_total missing", "area_m2 missing")
	}

	reasons = append(reasons, v.plausibility(l)...)

	if len(reasons) == 0 && v.checker != nil {
		if !v.checker.IsReachable(ctx, l.URL) {
			reasons = append(reasons, "url unreachable")
		}
	}

	if len(reasons) > 0 {
		zap.L().Debug("validate: listing flagged",
			zap.String("listing", l.Identity()),
			zap.Strings("reasons", reasons),
		)
		return model.ValidityResult{OK: false, Reasons: reasons}
	}
	return model.ValidityResult{OK: true}
}

// Apply validates and writes the result onto the listing.
func (v *Validator) Apply(ctx context.Context, l *model.Listing) model.ValidityResult {
	res := v.Validate(ctx, l)
	l.Valid = res.OK
	l.InvalidReasons = res.Reasons
	return res
}

func (v *Validator) plausibility(l *model.Listing) []string {
	var reasons []string

	if l.PriceTotal != nil && *l.PriceTotal < v.bands.MinPriceTotal {
		reasons = append(reasons, fmt.Sprintf("price_total %.0f below plausible minimum %.0f", *l.PriceTotal, v.bands.MinPriceTotal))
	}
	if l.AreaM2 != nil && *l.AreaM2 < v.bands.MinAreaM2 {
		reasons = append(reasons, fmt.Sprintf("area_m2 %.0f below plausible minimum %.0f", *l.AreaM2, v.bands.MinAreaM2))
	}
	if l.PriceTotal != nil && l.AreaM2 != nil && *l.AreaM2 > 0 {
		perM2 := *l.PriceTotal / *l.AreaM2
		if perM2 < v.bands.MinPricePerM2 || perM2 > v.bands.MaxPricePerM2 {
			reasons = append(reasons, fmt.Sprintf("price_per_m2 %.0f outside plausible band", perM2))
		}
	}
	return reasons
}

// RecheckBatch re-runs validation over listings with bounded-concurrency
// liveness probes. Results are written onto the listings in place; store
// writes remain the caller's sequential responsibility.
func (v *Validator) RecheckBatch(ctx context.Context, listings []*model.Listing, concurrency int) {
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, l := range listings {
		g.Go(func() error {
			v.Apply(gctx, l)
			return nil
		})
	}
	// Workers only record per-listing results, no errors to surface.
	_ = g.Wait()
}
