package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.PlexConfig{
		URL:     server.URL,
		Token:   "test-token",
		Timeout: 5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PlexConfig
		want bool
	}{
		{"with url and token", config.PlexConfig{URL: "http://plex:32400", Token: "abc"}, true},
		{"missing token", config.PlexConfig{URL: "http://plex:32400"}, false},
		{"missing url", config.PlexConfig{Token: "abc"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_FetchItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "test-token" {
			t.Errorf("missing token header")
		}

		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(`{"MediaContainer":{"Directory":[
				{"key":"1","type":"movie","title":"Movies"},
				{"key":"2","type":"show","title":"TV Shows"}]}}`))
		case "/library/sections/1/all":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[{
				"ratingKey":"101","type":"movie","title":"Inception","year":2010,
				"addedAt":1600000000,"contentRating":"PG-13",
				"Genre":[{"tag":"Sci-Fi"}],"Label":[{"tag":"keep"}],
				"Media":[{"videoResolution":"4k","videoCodec":"hevc","audioCodec":"eac3",
					"Part":[{"size":5000000000},{"size":100}]}]}]}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	items, err := newTestClient(server).FetchItems(context.Background(), media.TypeMovie)
	if err != nil {
		t.Fatalf("FetchItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	item := items[0]
	if item.RatingKey != "101" || item.Title != "Inception" || item.Year != 2010 {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.LibrarySection != "Movies" {
		t.Errorf("LibrarySection = %q", item.LibrarySection)
	}
	if item.Resolution != "2160p" {
		t.Errorf("Resolution = %q, want 2160p", item.Resolution)
	}
	if item.FileSizeBytes != 5000000100 {
		t.Errorf("FileSizeBytes = %d", item.FileSizeBytes)
	}
	if item.AddedAt == nil || item.AddedAt.Unix() != 1600000000 {
		t.Errorf("AddedAt = %v", item.AddedAt)
	}
	if len(item.Genres) != 1 || item.Genres[0] != "Sci-Fi" {
		t.Errorf("Genres = %v", item.Genres)
	}
}

func TestClient_FetchItemsSkipsOtherSectionTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(`{"MediaContainer":{"Directory":[
				{"key":"1","type":"movie","title":"Movies"},
				{"key":"2","type":"show","title":"TV Shows"}]}}`))
		case "/library/sections/2/all":
			w.Write([]byte(`{"MediaContainer":{"Metadata":[
				{"ratingKey":"201","type":"show","title":"Severance","year":2022}]}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	items, err := newTestClient(server).FetchItems(context.Background(), media.TypeSeries)
	if err != nil {
		t.Fatalf("FetchItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Severance" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestClient_DeleteItem(t *testing.T) {
	var deleted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		deleted = r.URL.Path
	}))
	defer server.Close()

	if err := newTestClient(server).DeleteItem(context.Background(), "101"); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if deleted != "/library/metadata/101" {
		t.Errorf("deleted path = %q", deleted)
	}
}

func TestClient_DeleteItemNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := newTestClient(server).DeleteItem(context.Background(), "missing")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNormalizeResolution(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"4k", "2160p"},
		{"1080", "1080p"},
		{"720p", "720p"},
		{"", "sd"},
		{"576", "576"},
	}
	for _, tt := range tests {
		if got := normalizeResolution(tt.in); got != tt.want {
			t.Errorf("normalizeResolution(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
