// Package radarr implements the movie manager provider against a
// Radarr v3 API.
package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

var (
	ErrAPIKeyMissing = errors.New("radarr API key is not configured")
	ErrAPIError      = errors.New("radarr API error")
)

// Client is a Radarr API client.
type Client struct {
	httpClient *http.Client
	config     config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Radarr client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "radarr").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "radarr"
}

// IsConfigured returns true if the integration is enabled and has a URL
// and API key.
func (c *Client) IsConfigured() bool {
	return c.config.Enabled && c.config.URL != "" && c.config.APIKey != ""
}

// Test verifies connectivity by fetching system status.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	var result struct {
		Version string `json:"version"`
	}
	return c.doRequest(ctx, http.MethodGet, "/api/v3/system/status", nil, &result)
}

type movieResource struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Year             int     `json:"year"`
	Monitored        bool    `json:"monitored"`
	HasFile          bool    `json:"hasFile"`
	IsAvailable      bool    `json:"isAvailable"`
	QualityProfileID int64   `json:"qualityProfileId"`
	SizeOnDisk       int64   `json:"sizeOnDisk"`
	Tags             []int64 `json:"tags"`
	InCinemas        string  `json:"inCinemas"`
	DigitalRelease   string  `json:"digitalRelease"`
}

type namedResource struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// FetchMovies returns every movie Radarr manages, with quality profile
// names and tag labels resolved.
func (c *Client) FetchMovies(ctx context.Context) ([]providers.ManagedMovie, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var resources []movieResource
	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/movie", nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to fetch movies: %w", err)
	}

	profiles, err := c.fetchNames(ctx, "/api/v3/qualityprofile")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quality profiles: %w", err)
	}
	tags, err := c.fetchNames(ctx, "/api/v3/tag")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}

	movies := make([]providers.ManagedMovie, 0, len(resources))
	for i := range resources {
		r := &resources[i]
		m := providers.ManagedMovie{
			ID:              r.ID,
			Title:           r.Title,
			Year:            r.Year,
			Monitored:       r.Monitored,
			HasFile:         r.HasFile,
			IsAvailable:     r.IsAvailable,
			QualityProfile:  profiles[r.QualityProfileID],
			SizeOnDiskBytes: r.SizeOnDisk,
			InCinemas:       parseReleaseDate(r.InCinemas),
			DigitalRelease:  parseReleaseDate(r.DigitalRelease),
		}
		for _, tagID := range r.Tags {
			if label, ok := tags[tagID]; ok {
				m.Tags = append(m.Tags, label)
			}
		}
		movies = append(movies, m)
	}

	c.logger.Debug().Int("count", len(movies)).Msg("fetched managed movies")
	return movies, nil
}

// DeleteMovie removes a movie from Radarr, optionally deleting its files.
func (c *Client) DeleteMovie(ctx context.Context, id int64, deleteFiles bool) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	path := fmt.Sprintf("/api/v3/movie/%d?deleteFiles=%t&addImportExclusion=false", id, deleteFiles)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// UnmonitorMovie sets a movie's monitored flag to false. Radarr has no
// partial-update endpoint, so the full resource is fetched and written
// back.
func (c *Client) UnmonitorMovie(ctx context.Context, id int64) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	var movie map[string]any
	path := fmt.Sprintf("/api/v3/movie/%d", id)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &movie); err != nil {
		return fmt.Errorf("failed to fetch movie %d: %w", id, err)
	}
	movie["monitored"] = false

	body, err := json.Marshal(movie)
	if err != nil {
		return fmt.Errorf("failed to marshal movie: %w", err)
	}
	return c.doRequest(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) fetchNames(ctx context.Context, path string) (map[int64]string, error) {
	var resources []namedResource
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resources); err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(resources))
	for _, r := range resources {
		name := r.Name
		if name == "" {
			name = r.Label
		}
		names[r.ID] = name
	}
	return names, nil
}

func parseReleaseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return providers.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrAPIError)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
