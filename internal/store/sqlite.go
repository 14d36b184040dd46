package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/wohnwert/wohnwert/internal/model"
)

// SQLiteStore implements Store on an embedded database file. It covers
// single-host deployments where running Postgres is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single writer; WAL keeps readers unblocked during upserts.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	url           TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	district      TEXT,
	rooms         REAL,
	score         REAL,
	buyer_profile TEXT NOT NULL DEFAULT '',
	valid         INTEGER NOT NULL DEFAULT 0,
	payload       TEXT NOT NULL,
	first_seen    TIMESTAMP NOT NULL,
	last_updated  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_content_hash ON listings(content_hash);
CREATE INDEX IF NOT EXISTS idx_listings_score ON listings(score DESC);

CREATE TABLE IF NOT EXISTS deliveries (
	url          TEXT NOT NULL,
	channel      TEXT NOT NULL,
	delivered_at TIMESTAMP NOT NULL,
	PRIMARY KEY (url, channel)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByIdentity(ctx context.Context, key string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, first_seen, last_updated FROM listings WHERE url = ? OR content_hash = ? LIMIT 1`,
		key, key,
	)
	l, err := scanListingSQL(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "%s", key)
		}
		return nil, eris.Wrapf(err, "sqlite: find %s", key)
	}
	if err := s.loadDeliveries(ctx, []*model.Listing{l}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, l *model.Listing) error {
	if l.URL == "" {
		return eris.New("sqlite: upsert without url")
	}

	now := time.Now().UTC()
	if l.FirstSeen.IsZero() {
		l.FirstSeen = now
	}
	l.LastUpdated = now

	var existingFirstSeen time.Time
	err := s.db.QueryRowContext(ctx, `SELECT first_seen FROM listings WHERE url = ?`, l.URL).Scan(&existingFirstSeen)
	switch {
	case err == nil:
		l.FirstSeen = existingFirstSeen
	case eris.Is(err, sql.ErrNoRows):
	default:
		return eris.Wrapf(err, "sqlite: lookup first_seen %s", l.URL)
	}

	payload, err := marshalListing(l)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO listings (url, content_hash, source, district, rooms, score, buyer_profile, valid, payload, first_seen, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (url) DO UPDATE SET
	content_hash  = excluded.content_hash,
	source        = excluded.source,
	district      = excluded.district,
	rooms         = excluded.rooms,
	score         = excluded.score,
	buyer_profile = excluded.buyer_profile,
	valid         = excluded.valid,
	payload       = excluded.payload,
	last_updated  = excluded.last_updated`,
		l.URL, l.HashKey(), l.Source, l.District, l.Rooms, l.Score, l.BuyerProfile, l.Valid,
		string(payload), l.FirstSeen, l.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert %s", l.URL)
}

func (s *SQLiteStore) QueryCandidates(ctx context.Context, f CandidateFilter) ([]model.Listing, error) {
	query := `SELECT payload, first_seen, last_updated FROM listings WHERE valid AND score IS NOT NULL`
	var args []any

	if f.Profile != "" {
		query += " AND buyer_profile = ?"
		args = append(args, f.Profile)
	}
	if f.MinScore > 0 {
		query += " AND score >= ?"
		args = append(args, f.MinScore)
	}
	if !f.UpdatedAfter.IsZero() {
		query += " AND last_updated >= ?"
		args = append(args, f.UpdatedAfter)
	}
	if len(f.ExcludedDistricts) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.ExcludedDistricts)), ",")
		query += " AND (district IS NULL OR district NOT IN (" + placeholders + "))"
		for _, d := range f.ExcludedDistricts {
			args = append(args, d)
		}
	}
	if f.MinRooms > 0 {
		query += " AND rooms IS NOT NULL AND rooms >= ?"
		args = append(args, f.MinRooms)
	}
	if f.Channel != "" && !f.IncludeDelivered {
		query += " AND NOT EXISTS (SELECT 1 FROM deliveries d WHERE d.url = listings.url AND d.channel = ?)"
		args = append(args, string(f.Channel))
	}

	query += " ORDER BY score DESC, last_updated DESC, url ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query candidates")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListingSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate candidates")
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

func (s *SQLiteStore) MarkDelivered(ctx context.Context, key string, ch model.Channel) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO deliveries (url, channel, delivered_at) VALUES (?, ?, ?)`,
		key, string(ch), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark delivered %s/%s", key, ch)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrAlreadyDelivered, "%s/%s", key, ch)
	}
	return nil
}

func (s *SQLiteStore) ResetDeliveries(ctx context.Context, ch model.Channel, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM deliveries WHERE channel = ? AND delivered_at <= ?`,
		string(ch), olderThan,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reset deliveries %s", ch)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) loadDeliveries(ctx context.Context, listings []*model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	byURL := make(map[string]*model.Listing, len(listings))
	placeholders := make([]string, 0, len(listings))
	args := make([]any, 0, len(listings))
	for _, l := range listings {
		byURL[l.URL] = l
		placeholders = append(placeholders, "?")
		args = append(args, l.URL)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT url, channel FROM deliveries WHERE url IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: load deliveries")
	}
	defer rows.Close()

	for rows.Next() {
		var url, channel string
		if err := rows.Scan(&url, &channel); err != nil {
			return eris.Wrap(err, "sqlite: scan delivery")
		}
		if l, ok := byURL[url]; ok {
			if l.Delivered == nil {
				l.Delivered = make(map[model.Channel]bool)
			}
			l.Delivered[model.Channel(channel)] = true
		}
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate deliveries")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanListingSQL(row scanner) (*model.Listing, error) {
	var payload string
	var firstSeen, lastUpdated time.Time
	if err := row.Scan(&payload, &firstSeen, &lastUpdated); err != nil {
		return nil, err
	}
	l, err := unmarshalListing([]byte(payload))
	if err != nil {
		return nil, err
	}
	l.FirstSeen = firstSeen
	l.LastUpdated = lastUpdated
	return l, nil
}
