// Package providers defines the narrow contracts the maintenance core
// needs from external media services: read-only snapshot fetches and the
// per-item mutation actions used by deletions. Concrete HTTP clients live
// outside the core; tests use the mock subpackage.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

var (
	// ErrNotConfigured signals that an integration has no usable
	// configuration. Optional integrations degrade to "fields absent".
	ErrNotConfigured = errors.New("integration not configured")

	// ErrNotFound signals that the target item no longer exists on the
	// provider side. Deletions treat it as success so retries stay
	// idempotent.
	ErrNotFound = errors.New("item not found")
)

// LibraryItem is one record from the catalog server.
type LibraryItem struct {
	RatingKey      string
	Type           media.Type
	Title          string
	Year           int
	LibrarySection string
	AddedAt        *time.Time
	FileSizeBytes  int64
	Resolution     string
	VideoCodec     string
	AudioCodec     string
	ContentRating  string
	Genres         []string
	Labels         []string
}

// PlaybackStats is the playback-stats service's view of one item, keyed by
// the catalog rating key.
type PlaybackStats struct {
	RatingKey     string
	PlayCount     int
	LastWatchedAt *time.Time
	WatcherCount  int
}

// ManagedMovie is one record from the movie manager.
type ManagedMovie struct {
	ID              int64
	Title           string
	Year            int
	Monitored       bool
	HasFile         bool
	IsAvailable     bool
	QualityProfile  string
	SizeOnDiskBytes int64
	Tags            []string
	InCinemas       *time.Time
	DigitalRelease  *time.Time
}

// ManagedSeries is one record from the series manager.
type ManagedSeries struct {
	ID               int64
	Title            string
	Year             int
	Monitored        bool
	Status           string
	EpisodeCount     int
	EpisodeFileCount int
	PercentAvailable float64
	SizeOnDiskBytes  int64
	Tags             []string
}

// MediaRequest is one record from the request manager.
type MediaRequest struct {
	Title        string
	Year         int
	Type         media.Type
	RequestedBy  string
	RequestedAt  *time.Time
	RequestCount int
	Status       string
}

// LibraryProvider is the catalog server. It is mandatory: a scan aborts if
// the library fetch fails.
type LibraryProvider interface {
	Name() string
	FetchItems(ctx context.Context, mt media.Type) ([]LibraryItem, error)
	DeleteItem(ctx context.Context, ratingKey string) error
}

// PlaybackProvider supplies watch statistics keyed by rating key. It is
// mandatory alongside the library.
type PlaybackProvider interface {
	Name() string
	FetchStats(ctx context.Context) (map[string]PlaybackStats, error)
}

// MovieManager is the optional movie management integration.
type MovieManager interface {
	Name() string
	IsConfigured() bool
	FetchMovies(ctx context.Context) ([]ManagedMovie, error)
	DeleteMovie(ctx context.Context, id int64, deleteFiles bool) error
	UnmonitorMovie(ctx context.Context, id int64) error
}

// SeriesManager is the optional series management integration.
type SeriesManager interface {
	Name() string
	IsConfigured() bool
	FetchSeries(ctx context.Context) ([]ManagedSeries, error)
	DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error
	UnmonitorSeries(ctx context.Context, id int64) error
}

// RequestManager is the optional request tracking integration.
type RequestManager interface {
	Name() string
	IsConfigured() bool
	FetchRequests(ctx context.Context) ([]MediaRequest, error)
}
