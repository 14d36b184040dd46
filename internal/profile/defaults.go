package profile

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/wohnwert/wohnwert/internal/criteria"
)

// DefaultProfiles returns the built-in buyer personas.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Key:         "default",
			Name:        "Default Profile",
			Description: "Balanced scoring for general property evaluation",
			Weights: map[string]float64{
				"price_per_m2":             0.20,
				"hwb_value":                0.05,
				"year_built":               0.15,
				"ubahn_walk_minutes":       0.15,
				"school_walk_minutes":      0.05,
				"rooms":                    0.05,
				"balcony_terrace":          0.10,
				"floor_level":              0.05,
				"potential_growth_rating":  0.10,
				"renovation_needed_rating": 0.05,
				"area_m2":                  0.05,
			},
		},
		{
			Key:         "growing_family",
			Name:        "Growing Family",
			Description: "Prioritizes space, safety, and convenience for children",
			Weights: map[string]float64{
				"school_walk_minutes":      0.20,
				"rooms":                    0.20,
				"area_m2":                  0.15,
				"balcony_terrace":          0.10,
				"price_per_m2":             0.10,
				"ubahn_walk_minutes":       0.10,
				"renovation_needed_rating": 0.05,
				"hwb_value":                0.05,
				"year_built":               0.05,
			},
		},
		{
			Key:         "urban_professional",
			Name:        "Urban Professional",
			Description: "Prioritizes location, lifestyle features, and modern comforts",
			Weights: map[string]float64{
				"ubahn_walk_minutes":       0.25,
				"balcony_terrace":          0.15,
				"year_built":               0.15,
				"price_per_m2":             0.15,
				"renovation_needed_rating": 0.10,
				"potential_growth_rating":  0.10,
				"floor_level":              0.05,
				"school_walk_minutes":      0.05,
			},
		},
		{
			Key:         "eco_conscious",
			Name:        "Eco-Conscious Buyer",
			Description: "Prioritizes sustainability, energy efficiency, and low carbon footprint",
			Weights: map[string]float64{
				"hwb_value":                0.25,
				"year_built":               0.20,
				"ubahn_walk_minutes":       0.15,
				"price_per_m2":             0.15,
				"balcony_terrace":          0.10,
				"renovation_needed_rating": 0.05,
				"potential_growth_rating":  0.05,
				"floor_level":              0.05,
			},
		},
		{
			Key:         "diy_renovator",
			Name:        "DIY Renovator / Flipper",
			Description: "Actively seeking properties to add value through renovation",
			Weights: map[string]float64{
				"price_per_m2":             0.30,
				"potential_growth_rating":  0.25,
				"renovation_needed_rating": 0.20,
				"area_m2":                  0.10,
				"ubahn_walk_minutes":       0.10,
				"year_built":               0.05,
			},
		},
		{
			Key:         "retiree",
			Name:        "Retiree / Downsizer",
			Description: "Looking for comfort, accessibility, and peaceful living",
			Weights: map[string]float64{
				"floor_level":              0.25,
				"renovation_needed_rating": 0.20,
				"balcony_terrace":          0.15,
				"ubahn_walk_minutes":       0.15,
				"price_per_m2":             0.10,
				"hwb_value":                0.05,
				"area_m2":                  0.05,
				"year_built":               0.05,
			},
		},
		{
			Key:         "budget_buyer",
			Name:        "First-Time Buyer on Strict Budget",
			Description: "Primary goal is to enter the property market at lowest cost",
			Weights: map[string]float64{
				"price_per_m2":             0.50,
				"ubahn_walk_minutes":       0.20,
				"hwb_value":                0.10,
				"renovation_needed_rating": 0.10,
				"area_m2":                  0.05,
				"rooms":                    0.05,
			},
		},
	}
}

// profilesFile is the YAML shape of an external profile table.
type profilesFile struct {
	Profiles []Profile         `yaml:"profiles"`
	Aliases  map[string]string `yaml:"aliases,omitempty"`
}

// LoadRegistry builds a registry from a YAML file, or the built-in
// personas when path is empty. Any invalid profile aborts the load.
func LoadRegistry(catalog *criteria.Catalog, path string) (*Registry, error) {
	reg := NewRegistry(catalog)

	profiles := DefaultProfiles()
	var aliases map[string]string
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "profile: read %s", path)
		}
		var f profilesFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, eris.Wrapf(err, "profile: parse %s", path)
		}
		if len(f.Profiles) == 0 {
			return nil, eris.Wrapf(ErrInvalidProfile, "%s defines no profiles", path)
		}
		profiles = f.Profiles
		aliases = f.Aliases
	}

	for _, p := range profiles {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	for alias, key := range aliases {
		if err := reg.Alias(alias, key); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
