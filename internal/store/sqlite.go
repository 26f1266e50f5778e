package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS indicator_samples (
	region_id  TEXT NOT NULL,
	indicator  TEXT NOT NULL,
	sub_metric TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL,
	value      REAL,
	PRIMARY KEY (region_id, indicator, sub_metric, year)
);

CREATE INDEX IF NOT EXISTS idx_indicator_samples_key ON indicator_samples(indicator, sub_metric, year);

CREATE TABLE IF NOT EXISTS event_records (
	id                TEXT PRIMARY KEY,
	ts                TEXT NOT NULL DEFAULT '',
	latitude          REAL,
	longitude         REAL,
	categories        TEXT NOT NULL DEFAULT '[]',
	weapon_type       TEXT NOT NULL DEFAULT '',
	group_role        TEXT NOT NULL DEFAULT '',
	incident_group_id TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	summary           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_event_records_group ON event_records(incident_group_id);

CREATE TABLE IF NOT EXISTS favorite_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS favorites (
	list_id  TEXT NOT NULL REFERENCES favorite_lists(id) ON DELETE CASCADE,
	event_id TEXT NOT NULL,
	added_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (list_id, event_id)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) IndicatorKeys(ctx context.Context) ([]indicator.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT indicator, sub_metric, year FROM indicator_samples ORDER BY indicator, sub_metric, year`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list indicator keys")
	}
	defer rows.Close() //nolint:errcheck

	var keys []indicator.Key
	for rows.Next() {
		var k indicator.Key
		if err := rows.Scan(&k.Indicator, &k.SubMetric, &k.Year); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan indicator key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "sqlite: iterate indicator keys")
}

func (s *SQLiteStore) IndicatorSamples(ctx context.Context, key indicator.Key) (indicator.Samples, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, value FROM indicator_samples WHERE indicator = ? AND sub_metric = ? AND year = ?`,
		key.Indicator, key.SubMetric, key.Year,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query samples %s", key)
	}
	defer rows.Close() //nolint:errcheck

	out := make(indicator.Samples)
	for rows.Next() {
		var id string
		var v sql.NullFloat64
		if err := rows.Scan(&id, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample")
		}
		smp := indicator.Sample{RegionID: id}
		if v.Valid {
			smp.Value = indicator.Float(v.Float64)
		}
		out[id] = smp
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate samples %s", key)
}

func (s *SQLiteStore) ImportSamples(ctx context.Context, key indicator.Key, samples []indicator.Sample) (int64, error) {
	return s.inTx(ctx, "import samples",
		`INSERT INTO indicator_samples (region_id, indicator, sub_metric, year, value) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (region_id, indicator, sub_metric, year) DO UPDATE SET value = excluded.value`,
		len(samples), func(i int) []any {
			smp := samples[i]
			return []any{smp.RegionID, key.Indicator, key.SubMetric, key.Year, nullFloat(smp.Value)}
		})
}

func (s *SQLiteStore) Regions(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM regions`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query regions")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		out[id] = name
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate regions")
}

func (s *SQLiteStore) ImportRegions(ctx context.Context, names map[string]string) (int64, error) {
	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	return s.inTx(ctx, "import regions",
		`INSERT INTO regions (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		len(ids), func(i int) []any { return []any{ids[i], names[ids[i]]} })
}

func (s *SQLiteStore) Events(ctx context.Context) ([]events.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, latitude, longitude, categories, weapon_type, group_role, incident_group_id, title, summary
		 FROM event_records ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query events")
	}
	defer rows.Close() //nolint:errcheck

	var out []events.Record
	for rows.Next() {
		var r events.Record
		var lat, lng sql.NullFloat64
		var cats, role string
		if err := rows.Scan(&r.ID, &r.Timestamp, &lat, &lng, &cats, &r.WeaponType,
			&role, &r.IncidentGroupID, &r.Title, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if lat.Valid {
			r.Latitude = indicator.Float(lat.Float64)
		}
		if lng.Valid {
			r.Longitude = indicator.Float(lng.Float64)
		}
		if err := json.Unmarshal([]byte(cats), &r.Categories); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal categories of %s", r.ID)
		}
		r.GroupRole = events.Role(role)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate events")
}

const sqliteUpsertEvent = `INSERT INTO event_records
	(id, ts, latitude, longitude, categories, weapon_type, group_role, incident_group_id, title, summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		ts = excluded.ts, latitude = excluded.latitude, longitude = excluded.longitude,
		categories = excluded.categories, weapon_type = excluded.weapon_type,
		group_role = excluded.group_role, incident_group_id = excluded.incident_group_id,
		title = excluded.title, summary = excluded.summary`

func eventArgs(r events.Record) ([]any, error) {
	cats := r.Categories
	if cats == nil {
		cats = []string{}
	}
	catsJSON, err := json.Marshal(cats)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: marshal categories of %s", r.ID)
	}
	return []any{
		r.ID, r.Timestamp, nullFloat(r.Latitude), nullFloat(r.Longitude), string(catsJSON),
		r.WeaponType, string(r.GroupRole), r.IncidentGroupID, r.Title, r.Summary,
	}, nil
}

func (s *SQLiteStore) ImportEvents(ctx context.Context, records []events.Record) (int64, error) {
	return s.importEvents(ctx, records, false)
}

func (s *SQLiteStore) ReplaceEvents(ctx context.Context, records []events.Record) (int64, error) {
	return s.importEvents(ctx, records, true)
}

func (s *SQLiteStore) importEvents(ctx context.Context, records []events.Record, replace bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import events: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_records`); err != nil {
			return 0, eris.Wrap(err, "sqlite: import events: clear")
		}
	}

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertEvent)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import events: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range records {
		args, err := eventArgs(r)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import event %s", r.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import events: commit tx")
	}
	return n, nil
}

// SearchEvents matches every whitespace-separated term against the folded
// title and summary. SQLite has no German stemming, so this is a substring
// match. A blank query returns nil, meaning no search is active.
func (s *SQLiteStore) SearchEvents(ctx context.Context, query string) (events.IDSet, error) {
	terms := strings.Fields(ranking.Fold(query))
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, summary FROM event_records`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search events")
	}
	defer rows.Close() //nolint:errcheck

	out := events.NewIDSet()
	for rows.Next() {
		var id, title, summary string
		if err := rows.Scan(&id, &title, &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search hit")
		}
		text := ranking.Fold(title + " " + summary)
		if containsAll(text, terms) {
			out[id] = struct{}{}
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate search hits")
}

func containsAll(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func (s *SQLiteStore) CreateFavoriteList(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO favorite_lists (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC(),
	); err != nil {
		return "", eris.Wrap(err, "sqlite: create favorite list")
	}
	return id, nil
}

func (s *SQLiteStore) AddFavorite(ctx context.Context, listID, eventID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM favorite_lists WHERE id = ?`, listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "favorite list %s", listID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup favorite list %s", listID)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO favorites (list_id, event_id, added_at) VALUES (?, ?, ?) ON CONFLICT (list_id, event_id) DO NOTHING`,
		listID, eventID, time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: add favorite %s", eventID)
	}
	return nil
}

func (s *SQLiteStore) Favorites(ctx context.Context, listID string) (events.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id FROM favorites WHERE list_id = ?`, listID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query favorites %s", listID)
	}
	defer rows.Close() //nolint:errcheck

	out := events.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan favorite")
		}
		out[id] = struct{}{}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate favorites")
}

// inTx runs one statement n times inside a transaction.
func (s *SQLiteStore) inTx(ctx context.Context, op, query string, n int, args func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s: begin tx", op)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s: prepare", op)
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: %s", op)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s: commit tx", op)
	}
	return int64(n), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
