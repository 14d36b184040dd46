package criteria

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultSpecs returns the built-in Vienna catalog. Ranges mark what scores
// 100 ("ideal") and 0 ("acceptable worst"); everything beyond clamps.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "price_per_m2", Min: 3500, Max: 8000, Direction: LowerIsBetter, Missing: MissingWorst},
		{Name: "hwb_value", Min: 20, Max: 150, Direction: LowerIsBetter, Missing: MissingNeutral},
		{Name: "year_built", Min: 1900, Max: 2025, Direction: HigherIsBetter, Missing: MissingWorst},
		{Name: "ubahn_walk_minutes", Min: 2, Max: 15, Direction: LowerIsBetter, Missing: MissingNeutral},
		{Name: "school_walk_minutes", Min: 3, Max: 20, Direction: LowerIsBetter, Missing: MissingNeutral},
		{Name: "rooms", Min: 1, Max: 5, Direction: HigherIsBetter, Missing: MissingWorst},
		{Name: "area_m2", Min: 70, Max: 150, Direction: HigherIsBetter, Missing: MissingWorst},
		{Name: "balcony_terrace", Min: 0, Max: 1, Direction: HigherIsBetter, Missing: MissingWorst},
		{Name: "floor_level", Min: 0, Max: 5, Direction: HigherIsBetter, Missing: MissingNeutral},
		{Name: "potential_growth_rating", Min: 1, Max: 5, Direction: HigherIsBetter, Missing: MissingNeutral},
		{Name: "renovation_needed_rating", Min: 1, Max: 5, Direction: LowerIsBetter, Missing: MissingNeutral},
		{
			Name: "energy_class", Min: 1, Max: 9, Direction: HigherIsBetter, Missing: MissingNeutral,
			// Upstream computes the class from HWB and fGEE; here it is
			// just an ordinal label.
			Ordinal: map[string]float64{
				"G": 1, "F": 2, "E": 3, "D": 4, "C": 5, "B": 6, "A": 7, "A+": 8, "A++": 9,
			},
		},
		{
			Name: "condition", Min: 1, Max: 5, Direction: HigherIsBetter, Missing: MissingNeutral,
			Ordinal: map[string]float64{
				"abbruchreif":         1,
				"sanierungsbedürftig": 2,
				"gepflegt":            3,
				"sehr gut":            4,
				"neuwertig":           5,
				"erstbezug":           5,
			},
		},
	}
}

// DefaultCatalog builds the built-in catalog. The defaults are statically
// valid, so the error path only trips if they are edited inconsistently.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(DefaultSpecs())
}

// catalogFile is the YAML shape of an external criterion catalog.
type catalogFile struct {
	Criteria []Spec `yaml:"criteria"`
}

// LoadCatalog reads a criterion catalog from a YAML file. An empty path
// yields the built-in defaults.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "criteria: read %s", path)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "criteria: parse %s", path)
	}
	if len(f.Criteria) == 0 {
		return nil, eris.Errorf("criteria: %s defines no criteria", path)
	}
	return NewCatalog(f.Criteria)
}
