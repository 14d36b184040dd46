// Package scoring combines normalized criterion scores with buyer-profile
// weights into one aggregate listing score.
package scoring

import (
	"math"

	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/criteria"
	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/profile"
)

// Engine scores listings against the criterion catalog. The profile is an
// explicit argument on every call; there is no process-wide current
// profile, so concurrent callers cannot contaminate each other.
type Engine struct {
	catalog *criteria.Catalog
}

// NewEngine creates a scoring engine over the given catalog.
func NewEngine(catalog *criteria.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Score computes the weighted aggregate and the per-criterion weighted
// contributions for one listing under one profile. Normalization always
// starts from the raw fields; a listing with no usable criteria still
// scores via the per-criterion missing policies.
func (e *Engine) Score(l *model.Listing, p profile.Profile) (float64, map[string]float64) {
	breakdown := make(map[string]float64, len(p.Weights))

	var aggregate float64
	for _, name := range p.Criteria() {
		weight := p.Weights[name]
		contribution := weight * e.catalog.NormalizeListing(name, l)
		breakdown[name] = round2(contribution)
		aggregate += contribution
	}

	return round2(aggregate), breakdown
}

// Apply scores the listing and writes score, breakdown and the profile tag
// onto it as one unit, so a score is never left attributable to the wrong
// profile.
func (e *Engine) Apply(l *model.Listing, p profile.Profile) {
	aggregate, breakdown := e.Score(l, p)
	l.Score = &aggregate
	l.Breakdown = breakdown
	l.BuyerProfile = p.Key

	zap.L().Debug("scoring: listing scored",
		zap.String("listing", l.Identity()),
		zap.String("profile", p.Key),
		zap.Float64("score", aggregate),
	)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
