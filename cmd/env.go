package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/criteria"
	"github.com/wohnwert/wohnwert/internal/feed"
	"github.com/wohnwert/wohnwert/internal/mortgage"
	"github.com/wohnwert/wohnwert/internal/pipeline"
	"github.com/wohnwert/wohnwert/internal/profile"
	"github.com/wohnwert/wohnwert/internal/scoring"
	"github.com/wohnwert/wohnwert/internal/store"
	"github.com/wohnwert/wohnwert/internal/validate"
)

// env holds the wired components every command works with.
type env struct {
	Catalog   *criteria.Catalog
	Profiles  *profile.Registry
	Engine    *scoring.Engine
	Calc      *mortgage.Calculator
	Validator *validate.Validator
	Store     store.Store
	Selector  *feed.Selector
	Evaluator *pipeline.Evaluator
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv wires the engine from the loaded configuration.
func initEnv(ctx context.Context) (*env, error) {
	catalog, err := criteria.LoadCatalog(cfg.Criteria.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init criteria catalog")
	}

	registry, err := profile.LoadRegistry(catalog, cfg.Profiles.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init profile registry")
	}

	var checker validate.ReachabilityChecker
	if cfg.Validate.LivenessEnabled {
		checker = validate.NewHTTPChecker(time.Duration(cfg.Validate.TimeoutSecs) * time.Second)
	}
	validator := validate.NewValidator(cfg.Validate.Bands, checker)

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Pool)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	engine := scoring.NewEngine(catalog)
	calc := mortgage.NewCalculator(cfg.Mortgage)

	return &env{
		Catalog:   catalog,
		Profiles:  registry,
		Engine:    engine,
		Calc:      calc,
		Validator: validator,
		Store:     st,
		Selector:  feed.NewSelector(st),
		Evaluator: pipeline.NewEvaluator(validator, engine, calc, registry, st),
	}, nil
}

// selectionFilter converts the configured feed defaults, letting flags
// override individual fields.
func selectionFilter() feed.Filter {
	return feed.Filter{
		MinScore:          cfg.Selection.MinScore,
		RecencyDays:       cfg.Selection.RecencyDays,
		ExcludedDistricts: cfg.Selection.ExcludedDistricts,
		MinRooms:          cfg.Selection.MinRooms,
		Limit:             cfg.Selection.Limit,
	}
}
