// Package plex implements the catalog provider against a Plex Media
// Server. Only JSON responses are used (Accept: application/json).
package plex

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
	ErrTokenMissing = errors.New("plex token is not configured")
	ErrAPIError     = errors.New("plex API error")
)

// Client is a Plex Media Server API client.
type Client struct {
	httpClient *http.Client
	config     config.PlexConfig
	logger     zerolog.Logger
}

// NewClient creates a new Plex client.
func NewClient(cfg config.PlexConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "plex").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "plex"
}

// IsConfigured returns true if the URL and token are set.
func (c *Client) IsConfigured() bool {
	return c.config.URL != "" && c.config.Token != ""
}

// Test verifies connectivity by fetching the server identity.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrTokenMissing
	}
	var result struct {
		MediaContainer struct {
			MachineIdentifier string `json:"machineIdentifier"`
		} `json:"MediaContainer"`
	}
	return c.doRequest(ctx, http.MethodGet, "/identity", &result)
}

type sectionsResponse struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

type itemsResponse struct {
	MediaContainer struct {
		Metadata []itemMetadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type itemMetadata struct {
	RatingKey     string `json:"ratingKey"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	AddedAt       int64  `json:"addedAt"`
	ContentRating string `json:"contentRating"`
	Genre         []tag  `json:"Genre"`
	Label         []tag  `json:"Label"`
	Media         []struct {
		VideoResolution string `json:"videoResolution"`
		VideoCodec      string `json:"videoCodec"`
		AudioCodec      string `json:"audioCodec"`
		Part            []struct {
			Size int64 `json:"size"`
		} `json:"Part"`
	} `json:"Media"`
}

type tag struct {
	Tag string `json:"tag"`
}

// FetchItems returns every item of the given type across all matching
// library sections.
func (c *Client) FetchItems(ctx context.Context, mt media.Type) ([]providers.LibraryItem, error) {
	if !c.IsConfigured() {
		return nil, ErrTokenMissing
	}

	var sections sectionsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/library/sections", &sections); err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	sectionType := "movie"
	if mt != media.TypeMovie {
		sectionType = "show"
	}

	var items []providers.LibraryItem
	for _, dir := range sections.MediaContainer.Directory {
		if dir.Type != sectionType {
			continue
		}
		var resp itemsResponse
		path := fmt.Sprintf("/library/sections/%s/all", dir.Key)
		if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch section %q: %w", dir.Title, err)
		}
		for i := range resp.MediaContainer.Metadata {
			items = append(items, toLibraryItem(&resp.MediaContainer.Metadata[i], mt, dir.Title))
		}
	}

	c.logger.Debug().Int("count", len(items)).Str("mediaType", string(mt)).Msg("fetched library items")
	return items, nil
}

func toLibraryItem(m *itemMetadata, mt media.Type, section string) providers.LibraryItem {
	item := providers.LibraryItem{
		RatingKey:      m.RatingKey,
		Type:           mt,
		Title:          m.Title,
		Year:           m.Year,
		LibrarySection: section,
		ContentRating:  m.ContentRating,
	}
	if m.AddedAt > 0 {
		t := time.Unix(m.AddedAt, 0).UTC()
		item.AddedAt = &t
	}
	for _, g := range m.Genre {
		item.Genres = append(item.Genres, g.Tag)
	}
	for _, l := range m.Label {
		item.Labels = append(item.Labels, l.Tag)
	}
	if len(m.Media) > 0 {
		md := m.Media[0]
		item.Resolution = normalizeResolution(md.VideoResolution)
		item.VideoCodec = md.VideoCodec
		item.AudioCodec = md.AudioCodec
		for _, part := range md.Part {
			item.FileSizeBytes += part.Size
		}
	}
	return item
}

// normalizeResolution maps Plex resolution labels onto the catalog's
// enum values. Plex reports "4k" for 2160p and bare "sd" for standard
// definition.
func normalizeResolution(res string) string {
	switch res {
	case "4k":
		return "2160p"
	case "480", "480p":
		return "480p"
	case "720", "720p":
		return "720p"
	case "1080", "1080p":
		return "1080p"
	case "sd", "":
		return "sd"
	default:
		return res
	}
}

// DeleteItem removes an item and its files from the media server.
func (c *Client) DeleteItem(ctx context.Context, ratingKey string) error {
	if !c.IsConfigured() {
		return ErrTokenMissing
	}
	path := fmt.Sprintf("/library/metadata/%s", ratingKey)
	err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("ratingKey", ratingKey).Msg("delete failed")
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return providers.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid token", ErrAPIError)
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
