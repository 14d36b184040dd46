// Package criteria defines the criterion catalog and the normalization of
// raw listing attributes to [0,100] desirability scores.
package criteria

import (
	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/model"
)

// Direction states whether larger raw values are more desirable.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// MissingPolicy states the score assigned when a raw value is absent.
// The choice is explicit per criterion: silently treating "unknown" as
// "bad" or "good" would bias the ranking.
type MissingPolicy string

const (
	MissingNeutral MissingPolicy = "neutral" // 50
	MissingWorst   MissingPolicy = "worst"   // 0
	MissingBest    MissingPolicy = "best"    // 100
)

// Spec is the static configuration of one criterion.
type Spec struct {
	Name      string        `yaml:"name"`
	Min       float64       `yaml:"min"`
	Max       float64       `yaml:"max"`
	Direction Direction     `yaml:"direction"`
	Missing   MissingPolicy `yaml:"missing"`

	// Ordinal maps categorical raw values (e.g. energy class "B") onto the
	// numeric scale before the usual clamp logic applies. Nil for numeric
	// criteria.
	Ordinal map[string]float64 `yaml:"ordinal,omitempty"`
}

// Validate checks the invariants of a single spec.
func (s Spec) Validate() error {
	if s.Name == "" {
		return eris.New("criteria: spec without name")
	}
	if s.Min >= s.Max {
		return eris.Errorf("criteria: %s: min %.2f must be below max %.2f", s.Name, s.Min, s.Max)
	}
	switch s.Direction {
	case HigherIsBetter, LowerIsBetter:
	default:
		return eris.Errorf("criteria: %s: unknown direction %q", s.Name, s.Direction)
	}
	switch s.Missing {
	case MissingNeutral, MissingWorst, MissingBest:
	default:
		return eris.Errorf("criteria: %s: unknown missing policy %q", s.Name, s.Missing)
	}
	return nil
}

// missingScore returns the configured score for an absent raw value.
func (s Spec) missingScore() float64 {
	switch s.Missing {
	case MissingBest:
		return 100
	case MissingNeutral:
		return 50
	default:
		return 0
	}
}

// Normalize maps a raw value to [0,100]. Values outside [min,max] clamp to
// the boundary score, a nil raw value yields the missing policy score.
func (s Spec) Normalize(raw *float64) float64 {
	if raw == nil {
		return s.missingScore()
	}
	v := *raw
	span := s.Max - s.Min

	var frac float64
	if s.Direction == LowerIsBetter {
		frac = (s.Max - v) / span
	} else {
		frac = (v - s.Min) / span
	}
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return frac * 100
}

// Catalog is the validated, closed set of criteria loaded at startup.
type Catalog struct {
	specs map[string]Spec
	order []string
}

// NewCatalog validates every spec and rejects duplicates. Catalog errors
// are fatal at load time: they indicate misconfiguration, not bad input.
func NewCatalog(specs []Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.specs[s.Name]; dup {
			return nil, eris.Errorf("criteria: duplicate spec %q", s.Name)
		}
		c.specs[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	return c, nil
}

// Has reports whether the catalog defines the named criterion.
func (c *Catalog) Has(name string) bool {
	_, ok := c.specs[name]
	return ok
}

// Names returns criterion names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Spec returns the spec for a criterion name.
func (c *Catalog) Spec(name string) (Spec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Normalize scores a raw numeric value for the named criterion. Unknown
// criteria score as 0; registration-time validation makes that unreachable
// for registered profiles.
func (c *Catalog) Normalize(name string, raw *float64) float64 {
	s, ok := c.specs[name]
	if !ok {
		return 0
	}
	return s.Normalize(raw)
}

// NormalizeListing resolves the raw value for the criterion from the
// listing (via the ordinal table for categorical criteria) and normalizes
// it. Normalization always starts from raw fields, nothing is cached.
func (c *Catalog) NormalizeListing(name string, l *model.Listing) float64 {
	s, ok := c.specs[name]
	if !ok {
		return 0
	}
	if s.Ordinal != nil {
		cat := l.CategoricalField(name)
		if cat == nil {
			return s.missingScore()
		}
		v, mapped := s.Ordinal[*cat]
		if !mapped {
			// Unknown category reads as absent rather than erroring:
			// sources disagree on labels.
			return s.missingScore()
		}
		return s.Normalize(&v)
	}
	return s.Normalize(l.NumericField(name))
}
