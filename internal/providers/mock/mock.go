// Package mock provides in-memory provider implementations with settable
// datasets and error injection, used by tests and by developer mode.
package mock

import (
	"context"
	"sync"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

// Library is a mock catalog server.
type Library struct {
	mu       sync.Mutex
	Items    []providers.LibraryItem
	FetchErr error
	Deleted  []string
	// DeleteErrs maps a rating key to the error its deletion returns.
	DeleteErrs map[string]error
}

func (l *Library) Name() string { return "library-mock" }

func (l *Library) FetchItems(_ context.Context, mt media.Type) ([]providers.LibraryItem, error) {
	if l.FetchErr != nil {
		return nil, l.FetchErr
	}
	var out []providers.LibraryItem
	for _, item := range l.Items {
		if item.Type == mt {
			out = append(out, item)
		}
	}
	return out, nil
}

func (l *Library) DeleteItem(_ context.Context, ratingKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.DeleteErrs[ratingKey]; ok {
		return err
	}
	l.Deleted = append(l.Deleted, ratingKey)
	return nil
}

// Playback is a mock playback-stats service.
type Playback struct {
	Stats    map[string]providers.PlaybackStats
	FetchErr error
}

func (p *Playback) Name() string { return "playback-mock" }

func (p *Playback) FetchStats(context.Context) (map[string]providers.PlaybackStats, error) {
	if p.FetchErr != nil {
		return nil, p.FetchErr
	}
	return p.Stats, nil
}

// MovieManager is a mock movie manager.
type MovieManager struct {
	mu          sync.Mutex
	Configured  bool
	Movies      []providers.ManagedMovie
	FetchErr    error
	Deleted     []int64
	Unmonitored []int64
	// ActionErrs maps a movie id to the error its delete/unmonitor returns.
	ActionErrs map[int64]error
}

func (m *MovieManager) Name() string       { return "movie-manager-mock" }
func (m *MovieManager) IsConfigured() bool { return m.Configured }

func (m *MovieManager) FetchMovies(context.Context) ([]providers.ManagedMovie, error) {
	if !m.Configured {
		return nil, providers.ErrNotConfigured
	}
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Movies, nil
}

func (m *MovieManager) DeleteMovie(_ context.Context, id int64, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ActionErrs[id]; ok {
		return err
	}
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MovieManager) UnmonitorMovie(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ActionErrs[id]; ok {
		return err
	}
	m.Unmonitored = append(m.Unmonitored, id)
	return nil
}

// SeriesManager is a mock series manager.
type SeriesManager struct {
	mu          sync.Mutex
	Configured  bool
	Series      []providers.ManagedSeries
	FetchErr    error
	Deleted     []int64
	Unmonitored []int64
	ActionErrs  map[int64]error
}

func (s *SeriesManager) Name() string       { return "series-manager-mock" }
func (s *SeriesManager) IsConfigured() bool { return s.Configured }

func (s *SeriesManager) FetchSeries(context.Context) ([]providers.ManagedSeries, error) {
	if !s.Configured {
		return nil, providers.ErrNotConfigured
	}
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return s.Series, nil
}

func (s *SeriesManager) DeleteSeries(_ context.Context, id int64, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.ActionErrs[id]; ok {
		return err
	}
	s.Deleted = append(s.Deleted, id)
	return nil
}

func (s *SeriesManager) UnmonitorSeries(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.ActionErrs[id]; ok {
		return err
	}
	s.Unmonitored = append(s.Unmonitored, id)
	return nil
}

// RequestManager is a mock request manager.
type RequestManager struct {
	Configured bool
	Requests   []providers.MediaRequest
	FetchErr   error
}

func (r *RequestManager) Name() string       { return "request-manager-mock" }
func (r *RequestManager) IsConfigured() bool { return r.Configured }

func (r *RequestManager) FetchRequests(context.Context) ([]providers.MediaRequest, error) {
	if !r.Configured {
		return nil, providers.ErrNotConfigured
	}
	if r.FetchErr != nil {
		return nil, r.FetchErr
	}
	return r.Requests, nil
}
