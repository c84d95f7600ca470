package media

import (
	"regexp"
	"sort"
	"strings"
)

var (
	apostropheRegex    = regexp.MustCompile(`[''\x60\x{2018}\x{2019}\x{02BC}]`)
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeTitle converts a title to a normalized form for comparison.
// It converts to lowercase, strips apostrophes (within-word punctuation),
// replaces remaining special characters with spaces, and collapses multiple
// spaces. Apostrophes are stripped rather than replaced with spaces so that
// titles like "Schitt's Creek" and "Schitts Creek" both normalize to
// "schitts creek".
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	return normalized
}

// DefaultYearTolerance is how far apart two release years may be while still
// counting as the same item. Providers routinely disagree by a year
// (theatrical vs digital release dates), so exact matching under-matches.
const DefaultYearTolerance = 1

// closeMatchPrefixLen is how many normalized characters the close-match
// heuristic compares.
const closeMatchPrefixLen = 10

// poolEntry is one record registered in a Pool.
type poolEntry struct {
	title string // normalized
	year  int
	ref   int
}

// Pool indexes one provider's records by normalized title so that lookups
// from another provider's catalog are O(1) per item instead of a linear
// scan of the whole dataset.
type Pool struct {
	tolerance int
	entries   []poolEntry
	byTitle   map[string][]int
}

// NewPool creates an empty match pool with the given year tolerance. A
// negative tolerance selects DefaultYearTolerance.
func NewPool(tolerance int) *Pool {
	if tolerance < 0 {
		tolerance = DefaultYearTolerance
	}
	return &Pool{
		tolerance: tolerance,
		byTitle:   make(map[string][]int),
	}
}

// Add registers a record under its title and year. The ref is an opaque
// caller-side identifier (typically the record's slice index) returned by
// Find.
func (p *Pool) Add(title string, year, ref int) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return
	}
	idx := len(p.entries)
	p.entries = append(p.entries, poolEntry{title: normalized, year: year, ref: ref})
	p.byTitle[normalized] = append(p.byTitle[normalized], idx)
}

// Len returns the number of registered records.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Find returns the ref of the record whose normalized title equals the
// given title and whose year is within the pool's tolerance. A year of 0 on
// either side skips the year check, since some providers omit release years
// entirely. Returns false when nothing matches.
func (p *Pool) Find(title string, year int) (int, bool) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return 0, false
	}
	for _, idx := range p.byTitle[normalized] {
		entry := &p.entries[idx]
		if yearsMatch(year, entry.year, p.tolerance) {
			return entry.ref, true
		}
	}
	return 0, false
}

func yearsMatch(a, b, tolerance int) bool {
	if a == 0 || b == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// CloseMatch describes a record whose title is near, but not equal to, a
// lookup title. Used only for "why didn't this match" diagnostics.
type CloseMatch struct {
	Title string
	Year  int
	Ref   int
}

// CloseMatches returns up to limit records whose normalized titles share a
// prefix (or containment) with the given title. This is a cheap heuristic
// for operator-facing diagnostics; it never drives matching decisions.
func (p *Pool) CloseMatches(title string, limit int) []CloseMatch {
	normalized := NormalizeTitle(title)
	if normalized == "" || limit <= 0 {
		return nil
	}

	prefix := normalized
	if len(prefix) > closeMatchPrefixLen {
		prefix = prefix[:closeMatchPrefixLen]
	}

	var matches []CloseMatch
	for i := range p.entries {
		entry := &p.entries[i]
		candidate := entry.title
		if len(candidate) > closeMatchPrefixLen {
			candidate = candidate[:closeMatchPrefixLen]
		}
		if strings.HasPrefix(entry.title, prefix) || strings.HasPrefix(normalized, candidate) ||
			strings.Contains(entry.title, normalized) || strings.Contains(normalized, entry.title) {
			matches = append(matches, CloseMatch{Title: entry.title, Year: entry.year, Ref: entry.ref})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
