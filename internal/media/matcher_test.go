package media

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "The Matrix", "the matrix"},
		{"punctuation stripped", "the matrix!", "the matrix"},
		{"apostrophe collapsed", "Schitt's Creek", "schitts creek"},
		{"unicode apostrophe", "Schitt’s Creek", "schitts creek"},
		{"colon to space", "Blade Runner: 2049", "blade runner 2049"},
		{"multiple spaces", "The   Lord  of the Rings", "the lord of the rings"},
		{"empty", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPoolFind_TitleAndYearTolerance(t *testing.T) {
	pool := NewPool(DefaultYearTolerance)
	pool.Add("The Matrix", 1999, 7)

	ref, ok := pool.Find("the matrix!", 2000)
	if !ok {
		t.Fatal("Find() = no match, want match within year tolerance")
	}
	if ref != 7 {
		t.Errorf("Find() ref = %d, want 7", ref)
	}

	if _, ok := pool.Find("the matrix", 2005); ok {
		t.Error("Find() matched with year difference 6, want no match")
	}
}

func TestPoolFind_ZeroYearSkipsCheck(t *testing.T) {
	pool := NewPool(DefaultYearTolerance)
	pool.Add("Severance", 0, 1)

	if _, ok := pool.Find("Severance", 2022); !ok {
		t.Error("Find() = no match, want match when pool entry has no year")
	}

	pool.Add("Dark", 2017, 2)
	if _, ok := pool.Find("Dark", 0); !ok {
		t.Error("Find() = no match, want match when lookup has no year")
	}
}

func TestPoolFind_DistinguishesSameTitleDifferentYear(t *testing.T) {
	pool := NewPool(DefaultYearTolerance)
	pool.Add("Dune", 1984, 1)
	pool.Add("Dune", 2021, 2)

	ref, ok := pool.Find("Dune", 2021)
	if !ok || ref != 2 {
		t.Errorf("Find() = (%d, %v), want (2, true)", ref, ok)
	}

	ref, ok = pool.Find("Dune", 1985)
	if !ok || ref != 1 {
		t.Errorf("Find() = (%d, %v), want (1, true)", ref, ok)
	}
}

func TestPoolFind_NoMatch(t *testing.T) {
	pool := NewPool(DefaultYearTolerance)
	pool.Add("Inception", 2010, 1)

	if _, ok := pool.Find("Tenet", 2020); ok {
		t.Error("Find() matched unrelated title")
	}
	if _, ok := pool.Find("", 2020); ok {
		t.Error("Find() matched empty title")
	}
}

func TestPoolCloseMatches(t *testing.T) {
	pool := NewPool(DefaultYearTolerance)
	pool.Add("The Matrix", 1999, 1)
	pool.Add("The Matrix Reloaded", 2003, 2)
	pool.Add("The Matrix Revolutions", 2003, 3)
	pool.Add("Inception", 2010, 4)

	matches := pool.CloseMatches("The Matrix", 10)
	if len(matches) != 3 {
		t.Fatalf("CloseMatches() returned %d entries, want 3", len(matches))
	}
	for _, m := range matches {
		if m.Ref == 4 {
			t.Error("CloseMatches() included unrelated title")
		}
	}

	limited := pool.CloseMatches("The Matrix", 2)
	if len(limited) != 2 {
		t.Errorf("CloseMatches() with limit 2 returned %d entries", len(limited))
	}

	if got := pool.CloseMatches("", 10); got != nil {
		t.Errorf("CloseMatches(\"\") = %v, want nil", got)
	}
}
