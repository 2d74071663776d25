package entityhub

import (
	"strings"
	"testing"
)

func TestExtractFromTechDictionary_MatchesKnownTerms(t *testing.T) {
	got := extractFromTechDictionary("I deployed the FastAPI service to AWS using Docker and Postgres.")
	want := map[string]bool{"fastapi": true, "aws": true, "docker": true}
	found := map[string]bool{}
	for _, term := range got {
		found[term] = true
	}
	for term := range want {
		if !found[term] {
			t.Errorf("expected %q among matches, got %v", term, got)
		}
	}
}

func TestExtractFromPatterns_CamelCaseAndKebab(t *testing.T) {
	got := extractFromPatterns("Check out MemoryEngine and the entity-extraction-pipeline package.")
	found := map[string]bool{}
	for _, m := range got {
		found[m] = true
	}
	if !found["MemoryEngine"] {
		t.Errorf("expected CamelCase match, got %v", got)
	}
	if !found["entity-extraction-pipeline"] {
		t.Errorf("expected kebab-case match, got %v", got)
	}
}

func TestExtractFromPatterns_NpmScopeAndVersioned(t *testing.T) {
	got := extractFromPatterns("We pinned @babel/core and upgraded to Python 3.12.")
	found := map[string]bool{}
	for _, m := range got {
		found[m] = true
	}
	if !found["@babel/core"] {
		t.Errorf("expected npm-scoped match, got %v", got)
	}
	if !found["Python 3.12"] {
		t.Errorf("expected version-qualified match, got %v", got)
	}
}

func TestExtractFromPatterns_FileExtensionMapsToLanguage(t *testing.T) {
	got := extractFromPatterns("Fixed a bug in main.py this morning.")
	found := map[string]bool{}
	for _, m := range got {
		found[m] = true
	}
	if !found["Python"] {
		t.Errorf("expected .py extension to map to Python, got %v", got)
	}
}

func TestNormalise_DropsShortAndAppliesCanonicalCasing(t *testing.T) {
	got := normalise([]string{"javascript", "JavaScript", "a", "graphql"})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after dedup/drop, got %v", got)
	}
	seen := map[string]bool{}
	for _, v := range got {
		seen[v] = true
	}
	if !seen["JavaScript"] || !seen["GraphQL"] {
		t.Errorf("expected canonical casing applied, got %v", got)
	}
}

func TestGlobalKnownSpansAndBlankSpans_MaskMatchedText(t *testing.T) {
	text := "I used Docker to deploy the app."
	spans := globalKnownSpans(text)
	if len(spans) == 0 {
		t.Fatal("expected at least one matched span for 'Docker'")
	}
	masked := blankSpans(text, spans)
	if len(masked) != len(text) {
		t.Fatalf("expected masked text to preserve length, got %d want %d", len(masked), len(text))
	}
	if strings.Contains(masked, "Docker") {
		t.Errorf("expected 'Docker' to be masked out, got %q", masked)
	}
}
