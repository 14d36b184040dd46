// Package store persists listings and their per-channel delivery state.
// The engine never hard-deletes listings; retention is store policy.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/model"
)

// ErrNotFound is returned when no listing matches an identity key.
var ErrNotFound = eris.New("store: listing not found")

// ErrAlreadyDelivered is the compare-and-set failure on a delivery flag:
// another cycle already sent the listing on that channel. Callers treat it
// as a skip, not a failure.
var ErrAlreadyDelivered = eris.New("store: already delivered")

// CandidateFilter narrows QueryCandidates. Zero values mean "no bound".
type CandidateFilter struct {
	Profile           string
	MinScore          float64
	UpdatedAfter      time.Time
	ExcludedDistricts []string
	MinRooms          float64
	Channel           model.Channel
	IncludeDelivered  bool
	Limit             int
}

// Store is the persistence contract of the evaluation engine. Upsert is
// keyed by the canonical URL with the content hash as secondary identity;
// the store guarantees at-most-one-writer per key, and MarkDelivered is a
// compare-and-set so two concurrent notification cycles can never both
// observe an unsent flag.
type Store interface {
	FindByIdentity(ctx context.Context, key string) (*model.Listing, error)
	Upsert(ctx context.Context, l *model.Listing) error
	QueryCandidates(ctx context.Context, f CandidateFilter) ([]model.Listing, error)

	// MarkDelivered flips the per-channel flag false→true exactly once,
	// returning ErrAlreadyDelivered when the flag was already set.
	MarkDelivered(ctx context.Context, key string, ch model.Channel) error

	// ResetDeliveries clears flags on one channel for deliveries older
	// than the cutoff: the explicit resend override for digest mode.
	ResetDeliveries(ctx context.Context, ch model.Channel, olderThan time.Time) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
