// Package profile holds named buyer-persona weight vectors over criteria.
package profile

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/criteria"
)

// weightTolerance is the allowed deviation from a weight sum of 1.0.
const weightTolerance = 1e-6

// ErrInvalidProfile marks a malformed weight configuration. Fatal at
// startup, never silently ignored.
var ErrInvalidProfile = eris.New("invalid buyer profile")

// ErrUnknownProfile marks a lookup of an unregistered profile name.
var ErrUnknownProfile = eris.New("unknown buyer profile")

// Profile is a named weighting scheme over criteria. Immutable once
// registered; changing weights means re-registering, so that computed
// scores stay attributable to the profile they were scored under.
type Profile struct {
	Key         string             `yaml:"key"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Weights     map[string]float64 `yaml:"weights"`
}

// WeightSum returns the total of all weights.
func (p Profile) WeightSum() float64 {
	var sum float64
	for _, w := range p.Weights {
		sum += w
	}
	return sum
}

// Criteria returns the criterion names of the profile, sorted for
// deterministic iteration.
func (p Profile) Criteria() []string {
	names := make([]string, 0, len(p.Weights))
	for name := range p.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry maps profile keys (and aliases) to validated profiles.
type Registry struct {
	mu       sync.RWMutex
	catalog  *criteria.Catalog
	profiles map[string]Profile
	aliases  map[string]string
}

// NewRegistry creates an empty registry validating against the catalog.
func NewRegistry(catalog *criteria.Catalog) *Registry {
	return &Registry{
		catalog:  catalog,
		profiles: make(map[string]Profile),
		aliases:  make(map[string]string),
	}
}

// Register validates and stores a profile. Registering an existing key
// replaces the profile wholesale.
func (r *Registry) Register(p Profile) error {
	if p.Key == "" {
		return eris.Wrap(ErrInvalidProfile, "profile without key")
	}
	if len(p.Weights) == 0 {
		return eris.Wrapf(ErrInvalidProfile, "profile %q has no weights", p.Key)
	}
	for name, w := range p.Weights {
		if !r.catalog.Has(name) {
			return eris.Wrapf(ErrInvalidProfile, "profile %q references unknown criterion %q", p.Key, name)
		}
		if w < 0 || w > 1 {
			return eris.Wrapf(ErrInvalidProfile, "profile %q: weight %q = %.4f outside [0,1]", p.Key, name, w)
		}
	}
	if sum := p.WeightSum(); math.Abs(sum-1.0) > weightTolerance {
		return eris.Wrapf(ErrInvalidProfile, "profile %q: weights sum to %.6f, want 1.0", p.Key, sum)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Key] = p
	return nil
}

// Alias registers an alternative name for an existing profile key.
func (r *Registry) Alias(alias, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[key]; !ok {
		return eris.Wrapf(ErrUnknownProfile, "alias %q targets %q", alias, key)
	}
	r.aliases[alias] = key
	return nil
}

// Resolve returns the profile for a key or alias.
func (r *Registry) Resolve(nameOrAlias string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.TrimSpace(nameOrAlias)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	p, ok := r.profiles[key]
	if !ok {
		return Profile{}, eris.Wrapf(ErrUnknownProfile, "%q", nameOrAlias)
	}
	return p, nil
}

// Keys returns sorted registered profile keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
