package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	url           TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	district      TEXT,
	rooms         DOUBLE PRECISION,
	score         DOUBLE PRECISION,
	buyer_profile TEXT NOT NULL DEFAULT '',
	valid         BOOLEAN NOT NULL DEFAULT false,
	payload       JSONB NOT NULL,
	first_seen    TIMESTAMPTZ NOT NULL,
	last_updated  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_content_hash ON listings(content_hash);
CREATE INDEX IF NOT EXISTS idx_listings_score ON listings(score DESC);
CREATE INDEX IF NOT EXISTS idx_listings_valid_profile ON listings(valid, buyer_profile);
CREATE INDEX IF NOT EXISTS idx_listings_last_updated ON listings(last_updated DESC);

CREATE TABLE IF NOT EXISTS deliveries (
	url          TEXT NOT NULL REFERENCES listings(url),
	channel      TEXT NOT NULL,
	delivered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (url, channel)
);

CREATE INDEX IF NOT EXISTS idx_deliveries_channel_time ON deliveries(channel, delivered_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, key string) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload, first_seen, last_updated FROM listings WHERE url = $1 OR content_hash = $1 LIMIT 1`,
		key,
	)

	l, err := scanListing(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "%s", key)
		}
		return nil, eris.Wrapf(err, "postgres: find %s", key)
	}

	if err := s.loadDeliveries(ctx, []*model.Listing{l}); err != nil {
		return nil, err
	}
	return l, nil
}

// Upsert inserts or refreshes a listing. The identity key and first-seen
// timestamp are immutable once assigned; everything else reflects the
// latest observation.
func (s *PostgresStore) Upsert(ctx context.Context, l *model.Listing) error {
	if l.URL == "" {
		return eris.New("postgres: upsert without url")
	}

	now := time.Now().UTC()
	if l.FirstSeen.IsZero() {
		l.FirstSeen = now
	}
	l.LastUpdated = now

	var existingFirstSeen time.Time
	err := s.pool.QueryRow(ctx, `SELECT first_seen FROM listings WHERE url = $1`, l.URL).Scan(&existingFirstSeen)
	switch {
	case err == nil:
		l.FirstSeen = existingFirstSeen
	case eris.Is(err, pgx.ErrNoRows):
	default:
		return eris.Wrapf(err, "postgres: lookup first_seen %s", l.URL)
	}

	payload, err := marshalListing(l)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO listings (url, content_hash, source, district, rooms, score, buyer_profile, valid, payload, first_seen, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (url) DO UPDATE SET
	content_hash  = EXCLUDED.content_hash,
	source        = EXCLUDED.source,
	district      = EXCLUDED.district,
	rooms         = EXCLUDED.rooms,
	score         = EXCLUDED.score,
	buyer_profile = EXCLUDED.buyer_profile,
	valid         = EXCLUDED.valid,
	payload       = EXCLUDED.payload,
	last_updated  = EXCLUDED.last_updated`,
		l.URL, l.HashKey(), l.Source, l.District, l.Rooms, l.Score, l.BuyerProfile, l.Valid,
		payload, l.FirstSeen, l.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert %s", l.URL)
}

func (s *PostgresStore) QueryCandidates(ctx context.Context, f CandidateFilter) ([]model.Listing, error) {
	query := `SELECT payload, first_seen, last_updated FROM listings WHERE valid AND score IS NOT NULL`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Profile != "" {
		query += " AND buyer_profile = " + arg(f.Profile)
	}
	if f.MinScore > 0 {
		query += " AND score >= " + arg(f.MinScore)
	}
	if !f.UpdatedAfter.IsZero() {
		query += " AND last_updated >= " + arg(f.UpdatedAfter)
	}
	if len(f.ExcludedDistricts) > 0 {
		query += " AND (district IS NULL OR NOT district = ANY(" + arg(f.ExcludedDistricts) + "))"
	}
	if f.MinRooms > 0 {
		query += " AND rooms IS NOT NULL AND rooms >= " + arg(f.MinRooms)
	}
	if f.Channel != "" && !f.IncludeDelivered {
		query += " AND NOT EXISTS (SELECT 1 FROM deliveries d WHERE d.url = listings.url AND d.channel = " + arg(string(f.Channel)) + ")"
	}

	query += " ORDER BY score DESC, last_updated DESC, url ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query candidates")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate candidates")
	}

	refs := make([]*model.Listing, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := s.loadDeliveries(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDelivered sets the per-channel flag with insert-if-absent semantics:
// zero rows affected means another cycle won the race.
func (s *PostgresStore) MarkDelivered(ctx context.Context, key string, ch model.Channel) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO deliveries (url, channel, delivered_at) VALUES ($1, $2, $3) ON CONFLICT (url, channel) DO NOTHING`,
		key, string(ch), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark delivered %s/%s", key, ch)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyDelivered, "%s/%s", key, ch)
	}
	return nil
}

func (s *PostgresStore) ResetDeliveries(ctx context.Context, ch model.Channel, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM deliveries WHERE channel = $1 AND delivered_at <= $2`,
		string(ch), olderThan,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: reset deliveries %s", ch)
	}
	return tag.RowsAffected(), nil
}

// loadDeliveries populates the Delivered map of the given listings.
func (s *PostgresStore) loadDeliveries(ctx context.Context, listings []*model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	urls := make([]string, 0, len(listings))
	byURL := make(map[string]*model.Listing, len(listings))
	for _, l := range listings {
		urls = append(urls, l.URL)
		byURL[l.URL] = l
	}

	rows, err := s.pool.Query(ctx, `SELECT url, channel FROM deliveries WHERE url = ANY($1)`, urls)
	if err != nil {
		return eris.Wrap(err, "postgres: load deliveries")
	}
	defer rows.Close()

	for rows.Next() {
		var url, channel string
		if err := rows.Scan(&url, &channel); err != nil {
			return eris.Wrap(err, "postgres: scan delivery")
		}
		if l, ok := byURL[url]; ok {
			if l.Delivered == nil {
				l.Delivered = make(map[model.Channel]bool)
			}
			l.Delivered[model.Channel(channel)] = true
		}
	}
	return eris.Wrap(rows.Err(), "postgres: iterate deliveries")
}

// marshalListing serializes a listing payload. Delivery flags are owned by
// the deliveries table, never the payload.
func marshalListing(l *model.Listing) ([]byte, error) {
	clone := *l
	clone.Delivered = nil
	payload, err := json.Marshal(&clone)
	return payload, eris.Wrap(err, "store: marshal listing")
}

func unmarshalListing(payload []byte) (*model.Listing, error) {
	var l model.Listing
	if err := json.Unmarshal(payload, &l); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal listing")
	}
	return &l, nil
}

func scanListing(row pgx.Row) (*model.Listing, error) {
	var payload []byte
	var firstSeen, lastUpdated time.Time
	if err := row.Scan(&payload, &firstSeen, &lastUpdated); err != nil {
		return nil, err
	}
	l, err := unmarshalListing(payload)
	if err != nil {
		return nil, err
	}
	l.FirstSeen = firstSeen
	l.LastUpdated = lastUpdated
	return l, nil
}
