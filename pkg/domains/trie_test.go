package domains_test

import (
	"testing"

	"proxywatch/pkg/domains"
)

func set(items ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func TestMatchExactDomain(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("example.com"))

	if !matcher.Match("example.com") {
		t.Error("Expected exact match for example.com")
	}
}

func TestMatchSubdomainCoverage(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("example.com"))

	if !matcher.Match("mail.example.com") {
		t.Error("Expected restricted parent to cover subdomain mail.example.com")
	}
	if !matcher.Match("deep.mail.example.com") {
		t.Error("Expected restricted parent to cover nested subdomain")
	}
}

func TestMatchNonMatch(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("example.com"))

	if matcher.Match("example.org") {
		t.Error("Expected no match for example.org")
	}
	if matcher.Match("elpmaxe.com") {
		t.Error("Expected no match for unrelated domain")
	}
}

// TestMatchCharacterBoundaryAmbiguity pins the character-level comparison:
// a restricted entry that is a trailing character sequence of another domain
// matches even without a label boundary. "ample.com" reversed is a prefix of
// "example.com" reversed, so the match fires.
func TestMatchCharacterBoundaryAmbiguity(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("ample.com"))

	if !matcher.Match("example.com") {
		t.Error("Character-level matching is expected to match example.com against ample.com")
	}
}

func TestMatchEmptyMatcher(t *testing.T) {
	matcher := domains.NewMatcher()

	if matcher.Match("example.com") {
		t.Error("Empty matcher must not match anything")
	}
	if matcher.Match("") {
		t.Error("Empty matcher must not match the empty string")
	}
}

func TestLoadReplacesSnapshot(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("old.com"))

	if !matcher.Match("old.com") {
		t.Fatal("Expected old.com to match before reload")
	}

	matcher.Load(set("new.com"))

	if matcher.Match("old.com") {
		t.Error("Expected old.com to be gone after reload")
	}
	if !matcher.Match("new.com") {
		t.Error("Expected new.com to match after reload")
	}
	if matcher.Size() != 1 {
		t.Errorf("Expected size 1 after reload, got %d", matcher.Size())
	}
}

func TestMatchPathRunsOut(t *testing.T) {
	matcher := domains.NewMatcher()
	matcher.Load(set("example.com"))

	// Query is shorter than the only stored entry; the walk ends on a
	// non-terminal node.
	if matcher.Match("le.com") {
		t.Error("Expected no match when the query ends mid-entry")
	}
}
