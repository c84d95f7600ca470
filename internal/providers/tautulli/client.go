// Package tautulli implements the playback-stats provider against a
// Tautulli server. Watch statistics are aggregated from the playback
// history, rolled up to the show level for episodes.
package tautulli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

var (
	ErrAPIKeyMissing = errors.New("tautulli API key is not configured")
	ErrAPIError      = errors.New("tautulli API error")
)

const historyPageSize = 1000

// Client is a Tautulli API client.
type Client struct {
	httpClient *http.Client
	config     config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Tautulli client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tautulli").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tautulli"
}

// IsConfigured returns true if the URL and API key are set.
func (c *Client) IsConfigured() bool {
	return c.config.Enabled && c.config.URL != "" && c.config.APIKey != ""
}

// Test verifies connectivity by fetching server info.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	var result json.RawMessage
	return c.doCommand(ctx, "get_server_info", nil, &result)
}

type historyRow struct {
	RatingKey            json.Number `json:"rating_key"`
	GrandparentRatingKey json.Number `json:"grandparent_rating_key"`
	UserID               int64       `json:"user_id"`
	Date                 int64       `json:"date"`
}

type historyData struct {
	RecordsFiltered int          `json:"recordsFiltered"`
	Data            []historyRow `json:"data"`
}

// FetchStats pages through the full playback history and aggregates it
// per rating key: total plays, last watched time, and the number of
// distinct watchers. Episode plays count against the owning show.
func (c *Client) FetchStats(ctx context.Context) (map[string]providers.PlaybackStats, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	stats := make(map[string]providers.PlaybackStats)
	watchers := make(map[string]map[int64]struct{})

	for start := 0; ; start += historyPageSize {
		params := url.Values{}
		params.Set("grouping", "1")
		params.Set("start", strconv.Itoa(start))
		params.Set("length", strconv.Itoa(historyPageSize))

		var page historyData
		if err := c.doCommand(ctx, "get_history", params, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch history page at %d: %w", start, err)
		}

		for i := range page.Data {
			row := &page.Data[i]
			key := row.GrandparentRatingKey.String()
			if key == "" || key == "0" {
				key = row.RatingKey.String()
			}
			if key == "" || key == "0" {
				continue
			}

			s := stats[key]
			s.RatingKey = key
			s.PlayCount++
			if row.Date > 0 {
				t := time.Unix(row.Date, 0).UTC()
				if s.LastWatchedAt == nil || t.After(*s.LastWatchedAt) {
					s.LastWatchedAt = &t
				}
			}
			if watchers[key] == nil {
				watchers[key] = make(map[int64]struct{})
			}
			watchers[key][row.UserID] = struct{}{}
			s.WatcherCount = len(watchers[key])
			stats[key] = s
		}

		if len(page.Data) < historyPageSize || start+historyPageSize >= page.RecordsFiltered {
			break
		}
	}

	c.logger.Debug().Int("items", len(stats)).Msg("aggregated playback history")
	return stats, nil
}

type apiEnvelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

func (c *Client) doCommand(ctx context.Context, cmd string, params url.Values, result any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.config.APIKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.config.URL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Response.Result != "success" {
		return fmt.Errorf("%w: %s", ErrAPIError, envelope.Response.Message)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Response.Data, result); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", cmd, err)
	}
	return nil
}
