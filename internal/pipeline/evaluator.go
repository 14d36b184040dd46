// Package pipeline runs listings through validation, scoring, financial
// annotation, and persistence as one evaluation pass.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/mortgage"
	"github.com/wohnwert/wohnwert/internal/profile"
	"github.com/wohnwert/wohnwert/internal/scoring"
	"github.com/wohnwert/wohnwert/internal/store"
	"github.com/wohnwert/wohnwert/internal/validate"
)

// Failure records one listing the pass could not persist. Evaluation
// faults (invalid listings, unreachable URLs) are not failures; they are
// recorded on the listing itself.
type Failure struct {
	Identity string `json:"identity"`
	Err      string `json:"error"`
}

// Report summarizes one evaluation pass.
type Report struct {
	RunID     string    `json:"run_id"`
	Profile   string    `json:"profile"`
	Total     int       `json:"total"`
	Evaluated int       `json:"evaluated"`
	Invalid   int       `json:"invalid"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
}

// Evaluator is the evaluation pass: validate, score, annotate, upsert.
type Evaluator struct {
	validator *validate.Validator
	engine    *scoring.Engine
	calc      *mortgage.Calculator
	profiles  *profile.Registry
	store     store.Store
}

func NewEvaluator(v *validate.Validator, e *scoring.Engine, c *mortgage.Calculator, r *profile.Registry, s store.Store) *Evaluator {
	return &Evaluator{validator: v, engine: e, calc: c, profiles: r, store: s}
}

// Run evaluates a batch of listings under one buyer profile. A listing
// that fails to persist is reported and skipped; it never aborts the
// batch.
func (ev *Evaluator) Run(ctx context.Context, profileKey string, listings []model.Listing) (*Report, error) {
	p, err := ev.profiles.Resolve(profileKey)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve profile")
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Profile:   p.Key,
		Total:     len(listings),
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", report.RunID), zap.String("profile", p.Key))
	log.Info("evaluation pass started", zap.Int("listings", len(listings)))

	for i := range listings {
		l := &listings[i]
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "pipeline: pass interrupted")
		}

		ev.evaluate(ctx, l, p)
		if !l.Valid {
			report.Invalid++
		}

		if err := ev.store.Upsert(ctx, l); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Identity: l.Identity(), Err: err.Error()})
			log.Warn("listing not persisted",
				zap.String("identity", l.Identity()),
				zap.Error(err))
			continue
		}
		report.Evaluated++
	}

	report.Elapsed = time.Since(report.StartedAt).Round(time.Millisecond).String()
	log.Info("evaluation pass finished",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("invalid", report.Invalid),
		zap.Int("failed", report.Failed),
		zap.String("elapsed", report.Elapsed))
	return report, nil
}

// evaluate runs the per-listing stages in order. Derived fields come
// first so validation and scoring see them.
func (ev *Evaluator) evaluate(ctx context.Context, l *model.Listing, p profile.Profile) {
	l.DerivePricePerM2()
	if l.ContentHash == "" {
		l.ContentHash = l.HashKey()
	}

	ev.validator.Apply(ctx, l)
	ev.engine.Apply(l, p)
	ev.calc.Annotate(l)
}
