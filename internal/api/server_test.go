package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mchestr/plex-wrapped-sub005/internal/config"
	"github.com/mchestr/plex-wrapped-sub005/internal/logger"
	"github.com/mchestr/plex-wrapped-sub005/internal/testutil"
	"github.com/mchestr/plex-wrapped-sub005/internal/websocket"
)

type stubLogs struct{}

func (stubLogs) RecentLogs() []logger.LogEntry { return nil }
func (stubLogs) LogFilePath() string           { return "" }

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	hub := websocket.NewHub()
	go hub.Run()

	server, err := NewServer(tdb.Conn, hub, stubLogs{}, config.Default(), tdb.Logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestRuleLifecycleOverHTTP(t *testing.T) {
	s := setupTestServer(t)

	create := `{
		"name": "stale movies",
		"mediaType": "movie",
		"action": "FLAG_FOR_REVIEW",
		"criteria": {
			"operator": "AND",
			"conditions": [
				{"field": "playCount", "operator": "equals", "value": 0}
			]
		}
	}`

	rec := doRequest(s, http.MethodPost, "/api/v1/rules", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created rule: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created rule has no id")
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/rules/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodDelete, "/api/v1/rules/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/rules/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestRuleCreateSyncsSchedule(t *testing.T) {
	s := setupTestServer(t)

	create := `{
		"name": "scheduled scan",
		"mediaType": "movie",
		"action": "DO_NOTHING",
		"schedule": "0 3 * * *",
		"criteria": {
			"operator": "AND",
			"conditions": [
				{"field": "playCount", "operator": "equals", "value": 0}
			]
		}
	}`

	rec := doRequest(s, http.MethodPost, "/api/v1/rules", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created rule: %v", err)
	}

	if !s.scheduler.HasTask("rule-scan:" + created.ID) {
		t.Error("scheduled rule did not register a task")
	}

	rec = doRequest(s, http.MethodDelete, "/api/v1/rules/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if s.scheduler.HasTask("rule-scan:" + created.ID) {
		t.Error("deleted rule still has a scheduled task")
	}
}

func TestFieldCatalogEndpoints(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/fields?mediaType=movie", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var fieldList []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &fieldList); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(fieldList) == 0 {
		t.Fatal("no fields returned for movie")
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/fields?mediaType=album", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown media type status = %d, want 400", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/fields/playCount", "")
	if rec.Code != http.StatusOK {
		t.Errorf("field lookup status = %d", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/api/v1/fields/noSuchField", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing field status = %d, want 404", rec.Code)
	}
}

func TestSystemStatus(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/system/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		RuleCount int             `json:"ruleCount"`
		Providers map[string]bool `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Providers["plex"] {
		t.Error("plex should report unconfigured with default config")
	}
}

func TestProviderHealthEndpoint(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/system/providers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Healthy bool `json:"healthy"`
		Checks  []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if len(body.Checks) != 5 {
		t.Fatalf("expected 5 provider checks, got %d", len(body.Checks))
	}
	if !body.Healthy {
		t.Error("unchecked providers should not report unhealthy")
	}

	// Forcing a check marks unconfigured providers as skipped.
	rec = doRequest(s, http.MethodPost, "/api/v1/system/providers/test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("test status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode test results: %v", err)
	}
	for _, check := range body.Checks {
		if check.Status != "skipped" {
			t.Errorf("provider %s status = %s, want skipped", check.Name, check.Status)
		}
	}
}

func TestCandidatesListEmpty(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/candidates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecentLogsEndpoint(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", rec.Body.String())
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/logs/download", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("download without log file status = %d, want 404", rec.Code)
	}
}
