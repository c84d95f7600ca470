package history

import (
	"context"
	"testing"

	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/testutil"
)

func TestRecordAndList(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	svc := NewService(tdb.Conn, tdb.Logger)

	entries := []Entry{
		{EventType: EventScanCompleted, RuleID: "rule-1", RuleName: "Unwatched movies",
			MediaType: media.TypeMovie, Detail: map[string]any{"itemsMatched": float64(3)}},
		{EventType: EventItemDeleted, RuleID: "rule-1", RatingKey: "mv-1",
			Title: "Inception", Actor: "admin"},
		{EventType: EventScanFailed, RuleID: "rule-2",
			Detail: map[string]any{"error": "library unreachable"}},
	}
	for _, e := range entries {
		if err := svc.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if all.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", all.TotalCount)
	}
	// Newest first.
	if all.Items[0].EventType != EventScanFailed {
		t.Errorf("First entry = %q, want scan_failed", all.Items[0].EventType)
	}
	if all.Items[0].Detail["error"] != "library unreachable" {
		t.Errorf("Detail not round-tripped: %v", all.Items[0].Detail)
	}

	byRule, err := svc.List(ctx, ListOptions{RuleID: "rule-1"})
	if err != nil {
		t.Fatalf("List by rule failed: %v", err)
	}
	if byRule.TotalCount != 2 {
		t.Errorf("Rule filter TotalCount = %d, want 2", byRule.TotalCount)
	}

	byType, err := svc.List(ctx, ListOptions{EventType: EventItemDeleted})
	if err != nil {
		t.Fatalf("List by event type failed: %v", err)
	}
	if byType.TotalCount != 1 || byType.Items[0].Title != "Inception" {
		t.Errorf("Event filter returned wrong entries: %+v", byType.Items)
	}
}

func TestListPagination(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	svc := NewService(tdb.Conn, tdb.Logger)

	for i := 0; i < 7; i++ {
		if err := svc.Record(ctx, Entry{EventType: EventScanCompleted, RuleID: "rule-1"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	page, err := svc.List(ctx, ListOptions{Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 3 {
		t.Errorf("Page 2 size = %d, want 3", len(page.Items))
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
}

func TestPrune(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()
	svc := NewService(tdb.Conn, tdb.Logger)

	if err := svc.Record(ctx, Entry{EventType: EventScanCompleted}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Age one entry past the retention window.
	if _, err := tdb.Conn.Exec(
		`UPDATE history SET created_at = datetime('now', '-400 days')`); err != nil {
		t.Fatalf("Failed to age entry: %v", err)
	}
	if err := svc.Record(ctx, Entry{EventType: EventItemDeleted}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	pruned, err := svc.Prune(ctx, 365)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Pruned = %d, want 1", pruned)
	}

	remaining, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if remaining.TotalCount != 1 || remaining.Items[0].EventType != EventItemDeleted {
		t.Errorf("Expected only the recent entry to remain, got %+v", remaining.Items)
	}

	// Zero retention disables pruning.
	if n, err := svc.Prune(ctx, 0); err != nil || n != 0 {
		t.Errorf("Prune(0) = (%d, %v), want (0, nil)", n, err)
	}
}
