package evaluate

import (
	"testing"
	"time"

	"github.com/mchestr/plex-wrapped-sub005/internal/criteria"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	reg, err := fields.Load()
	if err != nil {
		t.Fatalf("fields.Load() error = %v", err)
	}
	return NewAt(reg, evalNow)
}

func timePtr(t time.Time) *time.Time { return &t }

func movieItem() *media.Item {
	added := evalNow.AddDate(0, 0, -120)
	watched := evalNow.AddDate(0, 0, -30)
	return &media.Item{
		RatingKey:     "movie-1",
		Type:          media.TypeMovie,
		Title:         "The Matrix",
		Year:          1999,
		AddedAt:       timePtr(added),
		FileSizeBytes: 8_000_000_000,
		Resolution:    "1080p",
		Genres:        []string{"Action", "Sci-Fi"},
		PlayCount:     3,
		LastWatchedAt: timePtr(watched),
	}
}

func cond(field string, op fields.Operator, value any) *criteria.Condition {
	return &criteria.Condition{ID: "c-" + field, Field: field, Operator: op, Value: value}
}

func TestEvaluate_GroupAnd(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	allTrue := &criteria.Group{ID: "g", Operator: criteria.GroupAnd, Conditions: []criteria.Node{
		cond("title", fields.OpEquals, "The Matrix"),
		cond("year", fields.OpLessThan, float64(2000)),
	}}
	if !e.Evaluate(item, allTrue) {
		t.Error("AND of two true conditions = false, want true")
	}

	oneFalse := &criteria.Group{ID: "g", Operator: criteria.GroupAnd, Conditions: []criteria.Node{
		cond("title", fields.OpEquals, "The Matrix"),
		cond("year", fields.OpGreaterThan, float64(2000)),
	}}
	if e.Evaluate(item, oneFalse) {
		t.Error("AND with one false condition = true, want false")
	}
}

func TestEvaluate_GroupOr(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	oneTrue := &criteria.Group{ID: "g", Operator: criteria.GroupOr, Conditions: []criteria.Node{
		cond("title", fields.OpEquals, "Wrong Title"),
		cond("year", fields.OpEquals, float64(1999)),
	}}
	if !e.Evaluate(item, oneTrue) {
		t.Error("OR with one true condition = false, want true")
	}

	allFalse := &criteria.Group{ID: "g", Operator: criteria.GroupOr, Conditions: []criteria.Node{
		cond("title", fields.OpEquals, "Wrong Title"),
		cond("year", fields.OpEquals, float64(2024)),
	}}
	if e.Evaluate(item, allFalse) {
		t.Error("OR of two false conditions = true, want false")
	}
}

func TestEvaluateWithTrace_OneResultPerLeaf(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	// First OR child matches, but the trace must still contain results for
	// every leaf in the tree.
	tree := &criteria.Group{ID: "root", Operator: criteria.GroupOr, Conditions: []criteria.Node{
		cond("title", fields.OpEquals, "The Matrix"),
		&criteria.Group{ID: "inner", Operator: criteria.GroupAnd, Conditions: []criteria.Node{
			cond("year", fields.OpEquals, float64(1999)),
			cond("playCount", fields.OpEquals, float64(99)),
		}},
	}}

	trace := e.EvaluateWithTrace(item, tree)
	if !trace.Matches {
		t.Error("trace.Matches = false, want true")
	}
	if len(trace.Conditions) != 3 {
		t.Fatalf("trace has %d condition results, want 3", len(trace.Conditions))
	}
	if !trace.Conditions[0].Matched || !trace.Conditions[1].Matched || trace.Conditions[2].Matched {
		t.Errorf("per-condition results = %v, %v, %v; want true, true, false",
			trace.Conditions[0].Matched, trace.Conditions[1].Matched, trace.Conditions[2].Matched)
	}
	if trace.Conditions[0].Resolved != "The Matrix" {
		t.Errorf("resolved value = %v, want The Matrix", trace.Conditions[0].Resolved)
	}
}

func TestEvaluate_StringOperators(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	tests := []struct {
		name string
		cond *criteria.Condition
		want bool
	}{
		{"equals case-sensitive match", cond("title", fields.OpEquals, "The Matrix"), true},
		{"equals case-sensitive mismatch", cond("title", fields.OpEquals, "the matrix"), false},
		{"notEquals", cond("title", fields.OpNotEquals, "the matrix"), true},
		{"contains case-insensitive", cond("title", fields.OpContains, "MATRIX"), true},
		{"startsWith case-insensitive", cond("title", fields.OpStartsWith, "the mat"), true},
		{"endsWith case-insensitive", cond("title", fields.OpEndsWith, "TRIX"), true},
		{"regex", cond("title", fields.OpRegex, `^The M.*x$`), true},
		{"regex no match", cond("title", fields.OpRegex, `^金+$`), false},
		{"invalid regex resolves false", cond("title", fields.OpRegex, `[`), false},
		{"in", cond("title", fields.OpIn, []any{"Inception", "The Matrix"}), true},
		{"notIn", cond("title", fields.OpNotIn, []any{"Inception"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Evaluate(item, tt.cond); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_NumberOperators(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	tests := []struct {
		name string
		cond *criteria.Condition
		want bool
	}{
		{"greaterThan", cond("playCount", fields.OpGreaterThan, float64(2)), true},
		{"lessOrEqual boundary", cond("playCount", fields.OpLessOrEqual, float64(3)), true},
		{"between inclusive lower", cond("year", fields.OpBetween, []any{float64(1999), float64(2005)}), true},
		{"between inclusive upper", cond("year", fields.OpBetween, []any{float64(1990), float64(1999)}), true},
		{"between outside", cond("year", fields.OpBetween, []any{float64(2000), float64(2010)}), false},
		{"malformed between resolves false", cond("year", fields.OpBetween, "oops"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Evaluate(item, tt.cond); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_ArrayOperators(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	tests := []struct {
		name string
		cond *criteria.Condition
		want bool
	}{
		{"contains", cond("genres", fields.OpContains, "action"), true},
		{"containsAny", cond("genres", fields.OpContainsAny, []any{"Horror", "Sci-Fi"}), true},
		{"containsAll true", cond("genres", fields.OpContainsAll, []any{"Action", "Sci-Fi"}), true},
		{"containsAll false", cond("genres", fields.OpContainsAll, []any{"Action", "Horror"}), false},
		{"isNotEmpty", cond("genres", fields.OpIsNotEmpty, nil), true},
		{"isEmpty on populated", cond("genres", fields.OpIsEmpty, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Evaluate(item, tt.cond); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}

	empty := movieItem()
	empty.Labels = nil
	if !e.Evaluate(empty, cond("labels", fields.OpIsEmpty, nil)) {
		t.Error("isEmpty on empty array = false, want true")
	}
}

func TestEvaluate_NeverWatched(t *testing.T) {
	e := newEvaluator(t)

	item := movieItem()
	item.PlayCount = 0
	item.LastWatchedAt = nil

	if !e.Evaluate(item, cond("neverWatched", fields.OpEquals, true)) {
		t.Error("neverWatched equals true on unwatched item = false, want true")
	}

	watched := movieItem()
	if e.Evaluate(watched, cond("neverWatched", fields.OpEquals, true)) {
		t.Error("neverWatched equals true on watched item = true, want false")
	}
}

func TestEvaluate_OlderThanNullDateMatches(t *testing.T) {
	e := newEvaluator(t)

	item := movieItem()
	item.LastWatchedAt = nil

	older := &criteria.Condition{ID: "c", Field: "lastWatchedAt", Operator: fields.OpOlderThan,
		Value: float64(90), ValueUnit: fields.UnitDays}
	if !e.Evaluate(item, older) {
		t.Error("olderThan on null date = false, want true (never watched is infinitely old)")
	}

	newer := &criteria.Condition{ID: "c", Field: "lastWatchedAt", Operator: fields.OpNewerThan,
		Value: float64(90), ValueUnit: fields.UnitDays}
	if e.Evaluate(item, newer) {
		t.Error("newerThan on null date = true, want false")
	}
}

func TestEvaluate_OlderThanWithDates(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem() // watched 30 days ago

	tests := []struct {
		name  string
		op    fields.Operator
		value float64
		unit  fields.Unit
		want  bool
	}{
		{"older than 7 days", fields.OpOlderThan, 7, fields.UnitDays, true},
		{"older than 90 days", fields.OpOlderThan, 90, fields.UnitDays, false},
		{"newer than 90 days", fields.OpNewerThan, 90, fields.UnitDays, true},
		{"newer than 1 week", fields.OpNewerThan, 1, fields.UnitWeeks, false},
		{"older than 1 month", fields.OpOlderThan, 1, fields.UnitMonths, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &criteria.Condition{ID: "c", Field: "lastWatchedAt", Operator: tt.op,
				Value: tt.value, ValueUnit: tt.unit}
			if got := e.Evaluate(item, c); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_UndefinedNamespaceAlwaysFalse(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem() // MovieManager nil: integration unconfigured or unmatched

	conds := []*criteria.Condition{
		cond("movieManager.monitored", fields.OpEquals, true),
		cond("movieManager.monitored", fields.OpEquals, false),
		cond("movieManager.sizeOnDisk", fields.OpGreaterThan, float64(0)),
		cond("movieManager.tags", fields.OpIsEmpty, nil),
		{ID: "c", Field: "movieManager.inCinemas", Operator: fields.OpOlderThan,
			Value: float64(1), ValueUnit: fields.UnitYears},
	}
	for _, c := range conds {
		if e.Evaluate(item, c) {
			t.Errorf("condition on %s with nil namespace matched, want false", c.Field)
		}
	}

	// Only the null checks see the absence.
	if !e.Evaluate(item, cond("movieManager.monitored", fields.OpIsNull, nil)) {
		t.Error("isNull on undefined namespace = false, want true")
	}
	if e.Evaluate(item, cond("movieManager.monitored", fields.OpIsNotNull, nil)) {
		t.Error("isNotNull on undefined namespace = true, want false")
	}
}

func TestEvaluate_NullDistinguishesAbsentFromFalsy(t *testing.T) {
	e := newEvaluator(t)

	item := movieItem()
	item.PlayCount = 0

	// playCount 0 is present with a falsy value: not null.
	if e.Evaluate(item, cond("playCount", fields.OpIsNull, nil)) {
		t.Error("isNull on playCount=0 = true, want false")
	}
	if !e.Evaluate(item, cond("playCount", fields.OpEquals, float64(0))) {
		t.Error("equals 0 on playCount=0 = false, want true")
	}

	// lastWatchedAt nil is absent.
	item.LastWatchedAt = nil
	if !e.Evaluate(item, cond("lastWatchedAt", fields.OpIsNull, nil)) {
		t.Error("isNull on nil lastWatchedAt = false, want true")
	}
}

func TestEvaluate_ManagerFieldsWhenPresent(t *testing.T) {
	e := newEvaluator(t)

	item := movieItem()
	item.MovieManager = &media.MovieManagerInfo{
		ID:              12,
		Monitored:       true,
		HasFile:         true,
		SizeOnDiskBytes: 4_000_000_000,
		Tags:            []string{"kids"},
	}

	if !e.Evaluate(item, cond("movieManager.monitored", fields.OpEquals, true)) {
		t.Error("movieManager.monitored equals true = false, want true")
	}
	if !e.Evaluate(item, cond("movieManager.sizeOnDisk", fields.OpLessThan, float64(5_000_000_000))) {
		t.Error("movieManager.sizeOnDisk lessThan = false, want true")
	}
	if !e.Evaluate(item, cond("movieManager.tags", fields.OpContains, "kids")) {
		t.Error("movieManager.tags contains = false, want true")
	}
}

func TestEvaluate_DateComparisons(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem() // added 120 days before evalNow

	before := cond("addedAt", fields.OpBefore, evalNow.AddDate(0, 0, -100).Format(time.RFC3339))
	if !e.Evaluate(item, before) {
		t.Error("addedAt before cutoff = false, want true")
	}

	after := cond("addedAt", fields.OpAfter, "2025-05-01")
	if e.Evaluate(item, after) {
		t.Error("addedAt after later date = true, want false")
	}
}

func TestEvaluate_ComputedDays(t *testing.T) {
	e := newEvaluator(t)
	item := movieItem()

	if !e.Evaluate(item, cond("daysSinceAdded", fields.OpGreaterThan, float64(100))) {
		t.Error("daysSinceAdded > 100 = false, want true")
	}
	if !e.Evaluate(item, cond("daysSinceLastWatch", fields.OpBetween, []any{float64(29), float64(31)})) {
		t.Error("daysSinceLastWatch between 29 and 31 = false, want true")
	}

	item.LastWatchedAt = nil
	if e.Evaluate(item, cond("daysSinceLastWatch", fields.OpGreaterThan, float64(0))) {
		t.Error("daysSinceLastWatch on never-watched item matched, want false")
	}
}
