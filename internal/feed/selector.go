// Package feed selects the top scored listings for delivery.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/store"
)

// Filter bounds one selection pass. Zero values mean "no bound" except
// Limit, which DefaultLimit backfills.
type Filter struct {
	MinScore          float64
	RecencyDays       int
	ExcludedDistricts []string
	MinRooms          float64
	Channel           model.Channel
	ResendAllowed     bool
	Limit             int
}

// DefaultLimit is the feed size when the caller does not set one.
const DefaultLimit = 5

// Selector picks the next batch of listings to surface for a profile.
// Ordering is deterministic: score descending, then recency, then URL, so
// two runs over the same data always produce the same feed.
type Selector struct {
	store store.Store
}

func NewSelector(s store.Store) *Selector {
	return &Selector{store: s}
}

func (s *Selector) Select(ctx context.Context, profile string, f Filter) ([]model.Listing, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	cf := store.CandidateFilter{
		Profile:           profile,
		MinScore:          f.MinScore,
		ExcludedDistricts: f.ExcludedDistricts,
		MinRooms:          f.MinRooms,
		Channel:           f.Channel,
		IncludeDelivered:  f.ResendAllowed,
		Limit:             limit,
	}
	if f.RecencyDays > 0 {
		cf.UpdatedAfter = time.Now().UTC().AddDate(0, 0, -f.RecencyDays)
	}

	listings, err := s.store.QueryCandidates(ctx, cf)
	if err != nil {
		return nil, eris.Wrap(err, "feed: query candidates")
	}

	// Stores already order their results; re-sorting keeps the contract
	// independent of any one backend.
	sort.SliceStable(listings, func(i, j int) bool {
		si, sj := *listings[i].Score, *listings[j].Score
		if si != sj {
			return si > sj
		}
		if !listings[i].LastUpdated.Equal(listings[j].LastUpdated) {
			return listings[i].LastUpdated.After(listings[j].LastUpdated)
		}
		return listings[i].URL < listings[j].URL
	})

	if len(listings) > limit {
		listings = listings[:limit]
	}

	zap.L().Debug("feed selected",
		zap.String("profile", profile),
		zap.Int("count", len(listings)),
		zap.Float64("min_score", f.MinScore))
	return listings, nil
}

// MarkDelivered flips the delivery flag for one listing. The underlying
// store makes this a compare-and-set; store.ErrAlreadyDelivered means a
// concurrent cycle got there first.
func (s *Selector) MarkDelivered(ctx context.Context, url string, ch model.Channel) error {
	return s.store.MarkDelivered(ctx, url, ch)
}
