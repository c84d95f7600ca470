// Package sonarr implements the series manager provider against a
// Sonarr v3 API.
package sonarr

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
	ErrAPIKeyMissing = errors.New("sonarr API key is not configured")
	ErrAPIError      = errors.New("sonarr API error")
)

// Client is a Sonarr API client.
type Client struct {
	httpClient *http.Client
	config     config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Sonarr client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "sonarr").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "sonarr"
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

type seriesResource struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Year       int     `json:"year"`
	Monitored  bool    `json:"monitored"`
	Status     string  `json:"status"`
	Tags       []int64 `json:"tags"`
	Statistics struct {
		EpisodeCount      int     `json:"episodeCount"`
		EpisodeFileCount  int     `json:"episodeFileCount"`
		PercentOfEpisodes float64 `json:"percentOfEpisodes"`
		SizeOnDisk        int64   `json:"sizeOnDisk"`
	} `json:"statistics"`
}

// FetchSeries returns every series Sonarr manages, with tag labels
// resolved.
func (c *Client) FetchSeries(ctx context.Context) ([]providers.ManagedSeries, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var resources []seriesResource
	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/series", nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}

	tags, err := c.fetchTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}

	series := make([]providers.ManagedSeries, 0, len(resources))
	for i := range resources {
		r := &resources[i]
		s := providers.ManagedSeries{
			ID:               r.ID,
			Title:            r.Title,
			Year:             r.Year,
			Monitored:        r.Monitored,
			Status:           r.Status,
			EpisodeCount:     r.Statistics.EpisodeCount,
			EpisodeFileCount: r.Statistics.EpisodeFileCount,
			PercentAvailable: r.Statistics.PercentOfEpisodes,
			SizeOnDiskBytes:  r.Statistics.SizeOnDisk,
		}
		for _, tagID := range r.Tags {
			if label, ok := tags[tagID]; ok {
				s.Tags = append(s.Tags, label)
			}
		}
		series = append(series, s)
	}

	c.logger.Debug().Int("count", len(series)).Msg("fetched managed series")
	return series, nil
}

// DeleteSeries removes a series from Sonarr, optionally deleting its
// files.
func (c *Client) DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	path := fmt.Sprintf("/api/v3/series/%d?deleteFiles=%t", id, deleteFiles)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// UnmonitorSeries sets a series' monitored flag to false via a full
// resource round-trip.
func (c *Client) UnmonitorSeries(ctx context.Context, id int64) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	var series map[string]any
	path := fmt.Sprintf("/api/v3/series/%d", id)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &series); err != nil {
		return fmt.Errorf("failed to fetch series %d: %w", id, err)
	}
	series["monitored"] = false

	body, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}
	return c.doRequest(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) fetchTags(ctx context.Context) (map[int64]string, error) {
	var resources []struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/tag", nil, &resources); err != nil {
		return nil, err
	}
	tags := make(map[int64]string, len(resources))
	for _, r := range resources {
		tags[r.ID] = r.Label
	}
	return tags, nil
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
