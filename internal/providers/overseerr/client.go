// Package overseerr implements the request-manager provider against an
// Overseerr v1 API. Request records carry only TMDB/TVDB identifiers,
// so titles are resolved through the detail endpoints with a small
// per-fetch cache.
package overseerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

var (
	ErrAPIKeyMissing = errors.New("overseerr API key is not configured")
	ErrAPIError      = errors.New("overseerr API error")
)

const requestPageSize = 100

// Request status codes per the Overseerr API.
const (
	statusPending  = 1
	statusApproved = 2
	statusDeclined = 3
)

// Media availability code for fully available items.
const mediaAvailable = 5

// Client is an Overseerr API client.
type Client struct {
	httpClient *http.Client
	config     config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Overseerr client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "overseerr").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "overseerr"
}

// IsConfigured returns true if the integration is enabled and has a URL
// and API key.
func (c *Client) IsConfigured() bool {
	return c.config.Enabled && c.config.URL != "" && c.config.APIKey != ""
}

// Test verifies connectivity by fetching server status.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	var result struct {
		Version string `json:"version"`
	}
	return c.doRequest(ctx, "/api/v1/status", &result)
}

type requestResource struct {
	Type        string `json:"type"`
	Status      int    `json:"status"`
	CreatedAt   string `json:"createdAt"`
	RequestedBy struct {
		DisplayName string `json:"displayName"`
	} `json:"requestedBy"`
	Media struct {
		TmdbID int64 `json:"tmdbId"`
		TvdbID int64 `json:"tvdbId"`
		Status int   `json:"status"`
	} `json:"media"`
}

type requestPage struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Page    int `json:"page"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []requestResource `json:"results"`
}

type titleInfo struct {
	title string
	year  int
}

// FetchRequests returns every media request with resolved titles.
// Requests for the same title are folded into one record with a count.
func (c *Client) FetchRequests(ctx context.Context) ([]providers.MediaRequest, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var resources []requestResource
	for skip := 0; ; skip += requestPageSize {
		var page requestPage
		path := fmt.Sprintf("/api/v1/request?take=%d&skip=%d", requestPageSize, skip)
		if err := c.doRequest(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch requests at %d: %w", skip, err)
		}
		resources = append(resources, page.Results...)
		if len(page.Results) < requestPageSize {
			break
		}
	}

	titles := make(map[string]titleInfo)
	merged := make(map[string]*providers.MediaRequest)
	var order []string

	for i := range resources {
		r := &resources[i]
		info, err := c.resolveTitle(ctx, r, titles)
		if err != nil {
			c.logger.Warn().Err(err).Int64("tmdbId", r.Media.TmdbID).Msg("skipping request with unresolvable title")
			continue
		}

		key := fmt.Sprintf("%s/%s/%d", r.Type, info.title, info.year)
		req, ok := merged[key]
		if !ok {
			mt := media.TypeMovie
			if r.Type != "movie" {
				mt = media.TypeSeries
			}
			req = &providers.MediaRequest{
				Title:       info.title,
				Year:        info.year,
				Type:        mt,
				RequestedBy: r.RequestedBy.DisplayName,
				Status:      requestStatus(r),
			}
			merged[key] = req
			order = append(order, key)
		}
		req.RequestCount++
		if at := parseTimestamp(r.CreatedAt); at != nil {
			if req.RequestedAt == nil || at.Before(*req.RequestedAt) {
				req.RequestedAt = at
			}
		}
	}

	requests := make([]providers.MediaRequest, 0, len(order))
	for _, key := range order {
		requests = append(requests, *merged[key])
	}

	c.logger.Debug().Int("count", len(requests)).Msg("fetched media requests")
	return requests, nil
}

// resolveTitle looks up the display title and year for a request's
// media record, caching results across the fetch.
func (c *Client) resolveTitle(ctx context.Context, r *requestResource, cache map[string]titleInfo) (titleInfo, error) {
	var cacheKey, path string
	if r.Type == "movie" {
		cacheKey = fmt.Sprintf("movie/%d", r.Media.TmdbID)
		path = fmt.Sprintf("/api/v1/movie/%d", r.Media.TmdbID)
	} else {
		cacheKey = fmt.Sprintf("tv/%d", r.Media.TmdbID)
		path = fmt.Sprintf("/api/v1/tv/%d", r.Media.TmdbID)
	}
	if info, ok := cache[cacheKey]; ok {
		return info, nil
	}

	var detail struct {
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"releaseDate"`
		FirstAirDate string `json:"firstAirDate"`
	}
	if err := c.doRequest(ctx, path, &detail); err != nil {
		return titleInfo{}, err
	}

	info := titleInfo{title: detail.Title}
	if info.title == "" {
		info.title = detail.Name
	}
	date := detail.ReleaseDate
	if date == "" {
		date = detail.FirstAirDate
	}
	if len(date) >= 4 {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			info.year = t.Year()
		}
	}
	if info.title == "" {
		return titleInfo{}, fmt.Errorf("no title in detail response for %s", cacheKey)
	}

	cache[cacheKey] = info
	return info, nil
}

func requestStatus(r *requestResource) string {
	if r.Media.Status == mediaAvailable {
		return "available"
	}
	switch r.Status {
	case statusPending:
		return "pending"
	case statusApproved:
		return "approved"
	case statusDeclined:
		return "declined"
	default:
		return "pending"
	}
}

func parseTimestamp(s string) *time.Time {
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

func (c *Client) doRequest(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)

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
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
