package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lagekarte/internal/db"
	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/indicator"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS indicator_samples (
	region_id  TEXT NOT NULL,
	indicator  TEXT NOT NULL,
	sub_metric TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL,
	value      DOUBLE PRECISION,
	PRIMARY KEY (region_id, indicator, sub_metric, year)
);

CREATE INDEX IF NOT EXISTS idx_indicator_samples_key ON indicator_samples(indicator, sub_metric, year);

CREATE TABLE IF NOT EXISTS event_records (
	id                TEXT PRIMARY KEY,
	ts                TEXT NOT NULL DEFAULT '',
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	categories        TEXT[] NOT NULL DEFAULT '{}',
	weapon_type       TEXT NOT NULL DEFAULT '',
	group_role        TEXT NOT NULL DEFAULT '',
	incident_group_id TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	summary           TEXT NOT NULL DEFAULT '',
	search            TSVECTOR GENERATED ALWAYS AS (to_tsvector('german', title || ' ' || summary)) STORED
);

CREATE INDEX IF NOT EXISTS idx_event_records_search ON event_records USING GIN(search);
CREATE INDEX IF NOT EXISTS idx_event_records_group ON event_records(incident_group_id);

CREATE TABLE IF NOT EXISTS favorite_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS favorites (
	list_id  TEXT NOT NULL REFERENCES favorite_lists(id) ON DELETE CASCADE,
	event_id TEXT NOT NULL,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (list_id, event_id)
);
`

var (
	sampleUpsert = db.UpsertConfig{
		Table:        "indicator_samples",
		Columns:      []string{"region_id", "indicator", "sub_metric", "year", "value"},
		ConflictKeys: []string{"region_id", "indicator", "sub_metric", "year"},
	}
	regionUpsert = db.UpsertConfig{
		Table:        "regions",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}
	eventColumns = []string{
		"id", "ts", "latitude", "longitude", "categories", "weapon_type",
		"group_role", "incident_group_id", "title", "summary",
	}
	eventUpsert = db.UpsertConfig{
		Table:        "event_records",
		Columns:      eventColumns,
		ConflictKeys: []string{"id"},
	}
)

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) IndicatorKeys(ctx context.Context) ([]indicator.Key, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT indicator, sub_metric, year FROM indicator_samples ORDER BY indicator, sub_metric, year`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list indicator keys")
	}
	defer rows.Close()

	var keys []indicator.Key
	for rows.Next() {
		var k indicator.Key
		if err := rows.Scan(&k.Indicator, &k.SubMetric, &k.Year); err != nil {
			return nil, eris.Wrap(err, "postgres: scan indicator key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "postgres: iterate indicator keys")
}

func (s *PostgresStore) IndicatorSamples(ctx context.Context, key indicator.Key) (indicator.Samples, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region_id, value FROM indicator_samples WHERE indicator = $1 AND sub_metric = $2 AND year = $3`,
		key.Indicator, key.SubMetric, key.Year,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query samples %s", key)
	}
	defer rows.Close()

	out := make(indicator.Samples)
	for rows.Next() {
		var smp indicator.Sample
		if err := rows.Scan(&smp.RegionID, &smp.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sample")
		}
		out[smp.RegionID] = smp
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate samples %s", key)
}

func (s *PostgresStore) ImportSamples(ctx context.Context, key indicator.Key, samples []indicator.Sample) (int64, error) {
	rows := make([][]any, len(samples))
	for i, smp := range samples {
		rows[i] = []any{smp.RegionID, key.Indicator, key.SubMetric, key.Year, smp.Value}
	}
	n, err := db.BulkUpsert(ctx, s.pool, sampleUpsert, rows)
	return n, eris.Wrapf(err, "postgres: import samples %s", key)
}

func (s *PostgresStore) Regions(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM regions`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query regions")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		out[id] = name
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate regions")
}

func (s *PostgresStore) ImportRegions(ctx context.Context, names map[string]string) (int64, error) {
	rows := make([][]any, 0, len(names))
	for id, name := range names {
		rows = append(rows, []any{id, name})
	}
	n, err := db.BulkUpsert(ctx, s.pool, regionUpsert, rows)
	return n, eris.Wrap(err, "postgres: import regions")
}

func (s *PostgresStore) Events(ctx context.Context) ([]events.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(eventColumns, ", ")+` FROM event_records ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query events")
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var r events.Record
		var role string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Latitude, &r.Longitude, &r.Categories,
			&r.WeaponType, &role, &r.IncidentGroupID, &r.Title, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		r.GroupRole = events.Role(role)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate events")
}

func eventRows(records []events.Record) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		cats := r.Categories
		if cats == nil {
			cats = []string{}
		}
		rows[i] = []any{
			r.ID, r.Timestamp, r.Latitude, r.Longitude, cats, r.WeaponType,
			string(r.GroupRole), r.IncidentGroupID, r.Title, r.Summary,
		}
	}
	return rows
}

// ImportEvents inserts or updates records by id.
func (s *PostgresStore) ImportEvents(ctx context.Context, records []events.Record) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, eventUpsert, eventRows(records))
	return n, eris.Wrap(err, "postgres: import events")
}

// ReplaceEvents swaps the whole feed for records in one transaction.
func (s *PostgresStore) ReplaceEvents(ctx context.Context, records []events.Record) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace events: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM event_records`); err != nil {
		return 0, eris.Wrap(err, "postgres: replace events: clear")
	}
	n, err := db.CopyFrom(ctx, tx, "event_records", eventColumns, eventRows(records))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace events")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: replace events: commit tx")
	}
	return n, nil
}

// SearchEvents runs a German full-text query. A blank query returns nil,
// meaning no search is active.
func (s *PostgresStore) SearchEvents(ctx context.Context, query string) (events.IDSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM event_records WHERE search @@ plainto_tsquery('german', $1)`, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search events")
	}
	defer rows.Close()
	return collectIDs(rows, "postgres: scan search hit")
}

func (s *PostgresStore) CreateFavoriteList(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO favorite_lists (id, name, created_at) VALUES ($1, $2, $3)`,
		id, name, time.Now().UTC(),
	); err != nil {
		return "", eris.Wrap(err, "postgres: create favorite list")
	}
	return id, nil
}

func (s *PostgresStore) AddFavorite(ctx context.Context, listID, eventID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT true FROM favorite_lists WHERE id = $1`, listID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "favorite list %s", listID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup favorite list %s", listID)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO favorites (list_id, event_id, added_at) VALUES ($1, $2, $3) ON CONFLICT (list_id, event_id) DO NOTHING`,
		listID, eventID, time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: add favorite %s", eventID)
	}
	return nil
}

func (s *PostgresStore) Favorites(ctx context.Context, listID string) (events.IDSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT event_id FROM favorites WHERE list_id = $1`, listID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query favorites %s", listID)
	}
	defer rows.Close()
	return collectIDs(rows, "postgres: scan favorite")
}

func collectIDs(rows pgx.Rows, msg string) (events.IDSet, error) {
	out := events.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, msg)
		}
		out[id] = struct{}{}
	}
	return out, eris.Wrap(rows.Err(), msg)
}
