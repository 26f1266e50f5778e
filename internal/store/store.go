// Package store persists indicator samples, region names, the police-report
// feed and favourite lists.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/indicator"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = eris.New("store: not found")

// Store is the data-access surface of the dashboard.
type Store interface {
	// Indicators
	IndicatorKeys(ctx context.Context) ([]indicator.Key, error)
	IndicatorSamples(ctx context.Context, key indicator.Key) (indicator.Samples, error)
	ImportSamples(ctx context.Context, key indicator.Key, samples []indicator.Sample) (int64, error)

	// Regions
	Regions(ctx context.Context) (map[string]string, error)
	ImportRegions(ctx context.Context, names map[string]string) (int64, error)

	// Events
	Events(ctx context.Context) ([]events.Record, error)
	ImportEvents(ctx context.Context, records []events.Record) (int64, error)
	ReplaceEvents(ctx context.Context, records []events.Record) (int64, error)
	SearchEvents(ctx context.Context, query string) (events.IDSet, error)

	// Favourites
	CreateFavoriteList(ctx context.Context, name string) (string, error)
	AddFavorite(ctx context.Context, listID, eventID string) error
	Favorites(ctx context.Context, listID string) (events.IDSet, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
