package scan

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/candidates"
	"github.com/mchestr/plex-wrapped-sub005/internal/criteria"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/history"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers/mock"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
	"github.com/mchestr/plex-wrapped-sub005/internal/testutil"
)

type scanFixture struct {
	svc        *Service
	rules      *rules.Service
	candidates *candidates.Service
	history    *history.Service
	library    *mock.Library
	playback   *mock.Playback
	movies     *mock.MovieManager
	tdb        *testutil.TestDB
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	registry, err := fields.Load()
	if err != nil {
		t.Fatalf("Failed to load field registry: %v", err)
	}

	f := &scanFixture{
		tdb:      tdb,
		library:  &mock.Library{},
		playback: &mock.Playback{},
		movies:   &mock.MovieManager{},
	}
	f.rules = rules.NewService(tdb.Conn, registry, tdb.Logger)
	f.candidates = candidates.NewService(tdb.Conn, tdb.Logger)
	f.history = history.NewService(tdb.Conn, tdb.Logger)
	f.svc = NewService(NewStore(tdb.Conn), f.rules, f.candidates, f.history, registry, Providers{
		Library:  f.library,
		Playback: f.playback,
		Movies:   f.movies,
		Series:   &mock.SeriesManager{},
		Requests: &mock.RequestManager{},
	}, media.DefaultYearTolerance, tdb.Logger)
	return f
}

func (f *scanFixture) createRule(t *testing.T, group *criteria.Group, action rules.ActionType) *rules.Rule {
	t.Helper()
	rule, err := f.rules.Create(context.Background(), rules.CreateInput{
		Name:      "test rule",
		MediaType: media.TypeMovie,
		Criteria:  group,
		Action:    action,
	})
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	return rule
}

func timePtr(t time.Time) *time.Time { return &t }

func neverWatchedGroup() *criteria.Group {
	return &criteria.Group{
		Operator: criteria.GroupAnd,
		Conditions: []criteria.Node{
			&criteria.Condition{Field: "neverWatched", Operator: "equals", Value: true},
		},
	}
}

func TestRunMatchesAndPersistsCandidates(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	added := time.Now().Add(-200 * 24 * time.Hour)
	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010,
			LibrarySection: "Movies", AddedAt: timePtr(added), FileSizeBytes: 4 << 30},
		{RatingKey: "mv-2", Type: media.TypeMovie, Title: "Tenet", Year: 2020,
			LibrarySection: "Movies", AddedAt: timePtr(added), FileSizeBytes: 8 << 30},
		{RatingKey: "tv-1", Type: media.TypeSeries, Title: "Dark", Year: 2017,
			LibrarySection: "TV"},
	}
	f.playback.Stats = map[string]providers.PlaybackStats{
		"mv-2": {RatingKey: "mv-2", PlayCount: 5, LastWatchedAt: timePtr(time.Now())},
	}
	f.movies.Configured = true
	f.movies.Movies = []providers.ManagedMovie{
		// Year off by one on purpose; the matcher tolerates it.
		{ID: 77, Title: "Inception!", Year: 2011, Monitored: true, HasFile: true},
	}

	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)

	var progress []Progress
	run, err := f.svc.Run(ctx, rule.ID, TriggerManual, func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != StatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", run.Status)
	}
	if run.ItemsEvaluated != 2 {
		t.Errorf("ItemsEvaluated = %d, want 2 (series item excluded)", run.ItemsEvaluated)
	}
	if run.ItemsMatched != 1 {
		t.Errorf("ItemsMatched = %d, want 1", run.ItemsMatched)
	}
	if len(progress) == 0 {
		t.Error("Expected at least one progress report")
	}

	list, err := f.candidates.List(ctx, candidates.ListOptions{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("List candidates failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("Candidates = %d, want 1", len(list.Items))
	}
	c := list.Items[0]
	if c.RatingKey != "mv-1" {
		t.Errorf("Candidate = %q, want mv-1 (the never watched movie)", c.RatingKey)
	}
	if c.MovieManagerID == nil || *c.MovieManagerID != 77 {
		t.Errorf("MovieManagerID = %v, want 77 via title match", c.MovieManagerID)
	}
	if c.ReviewStatus != candidates.ReviewPending {
		t.Errorf("ReviewStatus = %q, want PENDING", c.ReviewStatus)
	}

	var trace map[string]any
	if err := json.Unmarshal(c.EvaluationTrace, &trace); err != nil {
		t.Fatalf("Trace is not valid JSON: %v", err)
	}
	if trace["matches"] != true {
		t.Errorf("Trace matches = %v, want true", trace["matches"])
	}

	// The persisted run matches what Run returned.
	stored, err := f.svc.Store().Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get run failed: %v", err)
	}
	if stored.Status != StatusCompleted || stored.FinishedAt == nil {
		t.Errorf("Stored run not terminal: %+v", stored)
	}
}

func TestRunFailsWhenLibraryUnavailable(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.FetchErr = errors.New("connection refused")
	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)

	run, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil)
	if err == nil {
		t.Fatal("Expected error from failed library fetch")
	}
	if run.Status != StatusFailed {
		t.Errorf("Status = %q, want FAILED", run.Status)
	}

	stored, err := f.svc.Store().Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get run failed: %v", err)
	}
	if stored.Status != StatusFailed || stored.Error == "" || stored.FinishedAt == nil {
		t.Errorf("Run not marked failed with cause: %+v", stored)
	}

	events, err := f.history.List(ctx, history.ListOptions{EventType: history.EventScanFailed})
	if err != nil {
		t.Fatalf("List history failed: %v", err)
	}
	if events.TotalCount != 1 {
		t.Errorf("Expected scan_failed history entry, got %d", events.TotalCount)
	}
}

func TestRunDegradesWhenConfiguredManagerUnavailable(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010, LibrarySection: "Movies"},
	}
	f.movies.Configured = true
	f.movies.FetchErr = errors.New("timeout")

	// A rule over catalog fields only still completes; the manager's
	// namespace just resolves absent for this run.
	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)
	run, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", run.Status)
	}
	if run.ItemsMatched != 1 {
		t.Errorf("ItemsMatched = %d, want 1", run.ItemsMatched)
	}

	list, err := f.candidates.List(ctx, candidates.ListOptions{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("List candidates failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("Candidates = %d, want 1", len(list.Items))
	}
	if list.Items[0].MovieManagerID != nil {
		t.Error("MovieManagerID should be unset when the manager fetch failed")
	}
}

func TestRunDegradesWhenManagerNotConfigured(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010, LibrarySection: "Movies"},
	}

	// movieManager.monitored resolves absent, so only isNull can match.
	rule := f.createRule(t, &criteria.Group{
		Operator: criteria.GroupAnd,
		Conditions: []criteria.Node{
			&criteria.Condition{Field: "movieManager.monitored", Operator: "isNull"},
		},
	}, rules.ActionFlagForReview)

	run, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.ItemsMatched != 1 {
		t.Errorf("ItemsMatched = %d, want 1 (absent field matches isNull)", run.ItemsMatched)
	}
}

func TestRunHonorsYearTolerance(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010, LibrarySection: "Movies"},
	}
	f.movies.Configured = true
	f.movies.Movies = []providers.ManagedMovie{
		{ID: 77, Title: "Inception", Year: 2011, Monitored: true},
	}

	// Tolerance zero: the off-by-one manager record must not match.
	strict := NewService(f.svc.Store(), f.rules, f.candidates, f.history,
		f.svc.registry, f.svc.providers, 0, f.tdb.Logger)

	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)
	if _, err := strict.Run(ctx, rule.ID, TriggerManual, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	list, err := f.candidates.List(ctx, candidates.ListOptions{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("List candidates failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("Candidates = %d, want 1", len(list.Items))
	}
	if list.Items[0].MovieManagerID != nil {
		t.Error("MovieManagerID should be unset with zero year tolerance")
	}
}

func TestRunRejectsDisabledRule(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)
	if _, err := f.rules.Update(ctx, rule.ID, rules.UpdateInput{Enabled: testutil.BoolPtr(false)}); err != nil {
		t.Fatalf("Failed to disable rule: %v", err)
	}

	if _, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil); !errors.Is(err, rules.ErrRuleDisabled) {
		t.Errorf("Expected ErrRuleDisabled, got %v", err)
	}
}

func TestRunHonorsLibrarySections(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010, LibrarySection: "Movies"},
		{RatingKey: "mv-2", Type: media.TypeMovie, Title: "Home Video", Year: 2020, LibrarySection: "Home Movies"},
	}

	rule, err := f.rules.Create(ctx, rules.CreateInput{
		Name:            "scoped",
		MediaType:       media.TypeMovie,
		Criteria:        neverWatchedGroup(),
		Action:          rules.ActionFlagForReview,
		LibrarySections: []string{"Movies"},
	})
	if err != nil {
		t.Fatalf("Create rule failed: %v", err)
	}

	run, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.ItemsEvaluated != 1 {
		t.Errorf("ItemsEvaluated = %d, want 1 (other section excluded)", run.ItemsEvaluated)
	}
}

func TestRunSetsEligibleAtFromActionDelay(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.library.Items = []providers.LibraryItem{
		{RatingKey: "mv-1", Type: media.TypeMovie, Title: "Inception", Year: 2010, LibrarySection: "Movies"},
	}

	rule, err := f.rules.Create(ctx, rules.CreateInput{
		Name:            "delayed",
		MediaType:       media.TypeMovie,
		Criteria:        neverWatchedGroup(),
		Action:          rules.ActionAutoDelete,
		ActionDelayDays: 7,
	})
	if err != nil {
		t.Fatalf("Create rule failed: %v", err)
	}

	if _, err := f.svc.Run(ctx, rule.ID, TriggerManual, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	list, err := f.candidates.List(ctx, candidates.ListOptions{RuleID: rule.ID})
	if err != nil {
		t.Fatalf("List candidates failed: %v", err)
	}
	c := list.Items[0]
	if c.EligibleAt == nil {
		t.Fatal("Expected EligibleAt to be set")
	}
	if c.Eligible(time.Now()) {
		t.Error("Candidate should not be eligible before the delay elapses")
	}
	if !c.Eligible(time.Now().Add(8 * 24 * time.Hour)) {
		t.Error("Candidate should be eligible after the delay elapses")
	}
}

func TestFailStale(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	rule := f.createRule(t, neverWatchedGroup(), rules.ActionFlagForReview)
	store := f.svc.Store()
	run, err := store.Create(ctx, rule.ID, TriggerSchedule)
	if err != nil {
		t.Fatalf("Create run failed: %v", err)
	}

	n, err := store.FailStale(ctx)
	if err != nil {
		t.Fatalf("FailStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("FailStale = %d, want 1", n)
	}

	stored, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get run failed: %v", err)
	}
	if stored.Status != StatusFailed {
		t.Errorf("Status = %q, want FAILED", stored.Status)
	}
}
