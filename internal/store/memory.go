package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/model"
)

// MemoryStore keeps everything in process memory. It backs dry runs and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	listings   map[string]*model.Listing // keyed by URL
	deliveries map[string]time.Time      // keyed by url + "\x00" + channel
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		listings:   make(map[string]*model.Listing),
		deliveries: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func deliveryKey(url string, ch model.Channel) string {
	return url + "\x00" + string(ch)
}

func (s *MemoryStore) FindByIdentity(ctx context.Context, key string) (*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[key]
	if !ok {
		for _, cand := range s.listings {
			if cand.HashKey() == key {
				l = cand
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "%s", key)
	}
	return s.withDeliveries(l), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, l *model.Listing) error {
	if l.URL == "" {
		return eris.New("memory: upsert without url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if l.FirstSeen.IsZero() {
		l.FirstSeen = now
	}
	l.LastUpdated = now
	if prev, ok := s.listings[l.URL]; ok {
		l.FirstSeen = prev.FirstSeen
	}

	clone := *l
	clone.Delivered = nil
	s.listings[l.URL] = &clone
	return nil
}

func (s *MemoryStore) QueryCandidates(ctx context.Context, f CandidateFilter) ([]model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[string]bool, len(f.ExcludedDistricts))
	for _, d := range f.ExcludedDistricts {
		excluded[d] = true
	}

	var out []model.Listing
	for _, l := range s.listings {
		switch {
		case !l.Valid || l.Score == nil:
		case f.Profile != "" && l.BuyerProfile != f.Profile:
		case f.MinScore > 0 && *l.Score < f.MinScore:
		case !f.UpdatedAfter.IsZero() && l.LastUpdated.Before(f.UpdatedAfter):
		case l.District != nil && excluded[*l.District]:
		case f.MinRooms > 0 && (l.Rooms == nil || *l.Rooms < f.MinRooms):
		case f.Channel != "" && !f.IncludeDelivered && s.delivered(l.URL, f.Channel):
		default:
			out = append(out, *s.withDeliveries(l))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].Score != *out[j].Score {
			return *out[i].Score > *out[j].Score
		}
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		return out[i].URL < out[j].URL
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkDelivered(ctx context.Context, key string, ch model.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := deliveryKey(key, ch)
	if _, ok := s.deliveries[k]; ok {
		return eris.Wrapf(ErrAlreadyDelivered, "%s/%s", key, ch)
	}
	s.deliveries[k] = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ResetDeliveries(ctx context.Context, ch model.Channel, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := "\x00" + string(ch)
	var n int64
	for k, at := range s.deliveries {
		if strings.HasSuffix(k, suffix) && !at.After(olderThan) {
			delete(s.deliveries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) delivered(url string, ch model.Channel) bool {
	_, ok := s.deliveries[deliveryKey(url, ch)]
	return ok
}

// withDeliveries returns a copy with the Delivered map filled in. Caller
// holds at least a read lock.
func (s *MemoryStore) withDeliveries(l *model.Listing) *model.Listing {
	clone := *l
	clone.Delivered = nil
	for _, ch := range []model.Channel{model.ChannelMain, model.ChannelDev, model.ChannelDigest} {
		if s.delivered(l.URL, ch) {
			if clone.Delivered == nil {
				clone.Delivered = make(map[model.Channel]bool)
			}
			clone.Delivered[ch] = true
		}
	}
	return &clone
}
