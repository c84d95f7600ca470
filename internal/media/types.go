// Package media defines the merged, per-scan view of a library item across
// every configured provider, plus the title matching used to correlate
// records between providers.
package media

import "time"

// Type identifies the kind of media an item represents.
type Type string

const (
	TypeMovie   Type = "movie"
	TypeSeries  Type = "tv_series"
	TypeEpisode Type = "episode"
)

// ValidTypes lists every supported media type.
func ValidTypes() []Type {
	return []Type{TypeMovie, TypeSeries, TypeEpisode}
}

// ValidType reports whether t is a supported media type.
func ValidType(t Type) bool {
	for _, v := range ValidTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// Item is the read-only snapshot of one library item merged across providers.
// It is built fresh for each scan run and discarded after evaluation; it is
// never persisted.
type Item struct {
	RatingKey      string
	Type           Type
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

	PlayCount     int
	LastWatchedAt *time.Time
	WatcherCount  int

	// Manager namespaces are nil when the integration is not configured or
	// no matching record was found. Conditions against their fields resolve
	// absent in that case.
	MovieManager   *MovieManagerInfo
	SeriesManager  *SeriesManagerInfo
	RequestManager *RequestInfo
}

// MovieManagerInfo carries the movie manager's view of a matched movie.
type MovieManagerInfo struct {
	ID              int64
	Monitored       bool
	HasFile         bool
	IsAvailable     bool
	QualityProfile  string
	SizeOnDiskBytes int64
	Tags            []string
	InCinemas       *time.Time
	DigitalRelease  *time.Time
}

// SeriesManagerInfo carries the series manager's view of a matched series.
type SeriesManagerInfo struct {
	ID               int64
	Monitored        bool
	Status           string
	EpisodeCount     int
	EpisodeFileCount int
	PercentAvailable float64
	SizeOnDiskBytes  int64
	Tags             []string
}

// RequestInfo carries the request manager's record for a matched item.
type RequestInfo struct {
	Requested    bool
	RequestedBy  string
	RequestedAt  *time.Time
	RequestCount int
	Status       string
}
