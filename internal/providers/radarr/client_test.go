package radarr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.ServiceConfig{
		URL:     server.URL,
		APIKey:  "test-key",
		Enabled: true,
		Timeout: 5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_FetchMovies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}

		switch r.URL.Path {
		case "/api/v3/movie":
			w.Write([]byte(`[{
				"id":7,"title":"Heat","year":1995,"monitored":true,"hasFile":true,
				"isAvailable":true,"qualityProfileId":4,"sizeOnDisk":9000000000,
				"tags":[1,9],"inCinemas":"1995-12-15T00:00:00Z"}]`))
		case "/api/v3/qualityprofile":
			w.Write([]byte(`[{"id":4,"name":"HD-1080p"}]`))
		case "/api/v3/tag":
			w.Write([]byte(`[{"id":1,"label":"keep-forever"}]`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	movies, err := newTestClient(server).FetchMovies(context.Background())
	if err != nil {
		t.Fatalf("FetchMovies failed: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("got %d movies, want 1", len(movies))
	}

	m := movies[0]
	if m.ID != 7 || m.Title != "Heat" || m.Year != 1995 {
		t.Errorf("unexpected movie: %+v", m)
	}
	if m.QualityProfile != "HD-1080p" {
		t.Errorf("QualityProfile = %q", m.QualityProfile)
	}
	// Unknown tag id 9 is dropped, known id resolved to its label.
	if len(m.Tags) != 1 || m.Tags[0] != "keep-forever" {
		t.Errorf("Tags = %v", m.Tags)
	}
	if m.InCinemas == nil || m.InCinemas.Year() != 1995 {
		t.Errorf("InCinemas = %v", m.InCinemas)
	}
	if m.DigitalRelease != nil {
		t.Errorf("DigitalRelease = %v, want nil", m.DigitalRelease)
	}
}

func TestClient_DeleteMovie(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
	}))
	defer server.Close()

	if err := newTestClient(server).DeleteMovie(context.Background(), 7, true); err != nil {
		t.Fatalf("DeleteMovie failed: %v", err)
	}
	if gotPath != "/api/v3/movie/7" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "deleteFiles=true&addImportExclusion=false" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestClient_DeleteMovieNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := newTestClient(server).DeleteMovie(context.Background(), 404, false)
	if !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_UnmonitorMovie(t *testing.T) {
	var updated map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":7,"title":"Heat","monitored":true,"qualityProfileId":4}`))
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
				t.Fatalf("decode PUT body: %v", err)
			}
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected method: %s", r.Method)
		}
	}))
	defer server.Close()

	if err := newTestClient(server).UnmonitorMovie(context.Background(), 7); err != nil {
		t.Fatalf("UnmonitorMovie failed: %v", err)
	}
	if updated["monitored"] != false {
		t.Errorf("monitored = %v, want false", updated["monitored"])
	}
	// The rest of the resource is written back untouched.
	if updated["title"] != "Heat" {
		t.Errorf("title = %v", updated["title"])
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(config.ServiceConfig{URL: "http://radarr:7878", APIKey: "k"}, zerolog.Nop())
	if client.IsConfigured() {
		t.Error("disabled integration should not report configured")
	}
	if _, err := client.FetchMovies(context.Background()); err != ErrAPIKeyMissing {
		t.Errorf("err = %v, want ErrAPIKeyMissing", err)
	}
}
