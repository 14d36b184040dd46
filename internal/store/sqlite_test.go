package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wohnwert/wohnwert/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "wohnwert.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestSQLiteStore_UpsertAndFind(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testListing("https://example.com/a", 61.5)
	require.NoError(t, s.Upsert(ctx, l))

	got, err := s.FindByIdentity(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, l.URL, got.URL)
	assert.Equal(t, 61.5, *got.Score)
	assert.Equal(t, "1040", *got.District)

	// Secondary identity: the content hash resolves to the same listing.
	byHash, err := s.FindByIdentity(ctx, l.HashKey())
	require.NoError(t, err)
	assert.Equal(t, l.URL, byHash.URL)
}

func TestSQLiteStore_Find_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.FindByIdentity(context.Background(), "https://example.com/nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Upsert_PreservesFirstSeen(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testListing("https://example.com/a", 50)
	require.NoError(t, s.Upsert(ctx, l))
	firstSeen := l.FirstSeen

	time.Sleep(10 * time.Millisecond)

	update := testListing("https://example.com/a", 58)
	require.NoError(t, s.Upsert(ctx, update))

	got, err := s.FindByIdentity(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, 58.0, *got.Score)
	assert.WithinDuration(t, firstSeen, got.FirstSeen, time.Second)
	assert.True(t, got.LastUpdated.After(got.FirstSeen))
}

func TestSQLiteStore_MarkDelivered_ExactlyOnce(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testListing("https://example.com/a", 70)
	require.NoError(t, s.Upsert(ctx, l))

	require.NoError(t, s.MarkDelivered(ctx, l.URL, model.ChannelMain))

	err := s.MarkDelivered(ctx, l.URL, model.ChannelMain)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyDelivered)

	// Independent channels do not interfere.
	require.NoError(t, s.MarkDelivered(ctx, l.URL, model.ChannelDev))

	got, err := s.FindByIdentity(ctx, l.URL)
	require.NoError(t, err)
	assert.True(t, got.DeliveredTo(model.ChannelMain))
	assert.True(t, got.DeliveredTo(model.ChannelDev))
	assert.False(t, got.DeliveredTo(model.ChannelDigest))
}

func TestSQLiteStore_QueryCandidates_FiltersAndOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	low := testListing("https://example.com/low", 30)
	mid := testListing("https://example.com/mid", 48.8)
	top := testListing("https://example.com/top", 48.8)
	excluded := testListing("https://example.com/simmering", 90)
	excluded.District = model.String("1100")
	invalid := testListing("https://example.com/broken", 85)
	invalid.Valid = false

	for _, l := range []*model.Listing{low, mid, top, excluded, invalid} {
		require.NoError(t, s.Upsert(ctx, l))
	}

	got, err := s.QueryCandidates(ctx, CandidateFilter{
		Profile:           "default",
		MinScore:          40,
		ExcludedDistricts: []string{"1100"},
		Channel:           model.ChannelMain,
		Limit:             5,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Equal scores break on URL ascending once timestamps tie.
	assert.Equal(t, 48.8, *got[0].Score)
	assert.Equal(t, 48.8, *got[1].Score)
}

func TestSQLiteStore_QueryCandidates_SkipsDelivered(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testListing("https://example.com/a", 70)
	b := testListing("https://example.com/b", 60)
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))
	require.NoError(t, s.MarkDelivered(ctx, a.URL, model.ChannelMain))

	got, err := s.QueryCandidates(ctx, CandidateFilter{Channel: model.ChannelMain})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.URL, got[0].URL)

	// IncludeDelivered restores the full feed.
	all, err := s.QueryCandidates(ctx, CandidateFilter{Channel: model.ChannelMain, IncludeDelivered: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStore_ResetDeliveries(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testListing("https://example.com/a", 70)
	require.NoError(t, s.Upsert(ctx, l))
	require.NoError(t, s.MarkDelivered(ctx, l.URL, model.ChannelDigest))
	require.NoError(t, s.MarkDelivered(ctx, l.URL, model.ChannelMain))

	n, err := s.ResetDeliveries(ctx, model.ChannelDigest, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Reset reopens the digest channel but leaves main marked.
	require.NoError(t, s.MarkDelivered(ctx, l.URL, model.ChannelDigest))
	err = s.MarkDelivered(ctx, l.URL, model.ChannelMain)
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
}
