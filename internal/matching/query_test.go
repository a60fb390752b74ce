package matching

import "testing"

func TestBuildQueriesOrderAndSpecificity(t *testing.T) {
	queries := BuildQueries("Blinding Lights", "The Weeknd", "")
	if len(queries) == 0 {
		t.Fatal("expected at least one query")
	}
	if queries[0] != "The Weeknd Blinding Lights" {
		t.Errorf("expected most specific query first, got %q", queries[0])
	}
	for _, q := range queries {
		if q == "" {
			t.Error("expected no empty queries")
		}
	}
}

func TestBuildQueriesSkipsLeadingThe(t *testing.T) {
	queries := BuildQueries("Song", "The Weeknd", "")
	found := false
	for _, q := range queries {
		if q == "Song Weeknd" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a query using the meaningful artist word after skipping 'The', got %v", queries)
	}
}

func TestBuildQueriesDeduplicates(t *testing.T) {
	queries := BuildQueries("Title", "Artist", "")
	seen := make(map[string]bool)
	for _, q := range queries {
		key := q
		if seen[key] {
			t.Errorf("duplicate query found: %q", q)
		}
		seen[key] = true
	}
}

func TestBuildQueriesAlwaysNonEmpty(t *testing.T) {
	queries := BuildQueries("Title", "", "")
	if len(queries) == 0 {
		t.Fatal("expected at least one query when title is present")
	}
	for _, q := range queries {
		if q == "" {
			t.Error("expected no empty queries")
		}
	}
}
