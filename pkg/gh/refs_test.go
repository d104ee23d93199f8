package gh

import (
	"reflect"
	"testing"
)

func TestClosingIssueURLsShortRefs(t *testing.T) {
	body := "This PR fixes #42 and also Closes #7.\n\nResolves: #100"
	got := ClosingIssueURLs(body, "github.com", "acme/widgets")
	want := []string{
		"https://github.com/acme/widgets/issues/42",
		"https://github.com/acme/widgets/issues/7",
		"https://github.com/acme/widgets/issues/100",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClosingIssueURLsFullURL(t *testing.T) {
	body := "Fixes https://github.com/acme/widgets/issues/42 (cross-repo)."
	got := ClosingIssueURLs(body, "github.com", "acme/other")
	if len(got) != 1 || got[0] != "https://github.com/acme/widgets/issues/42" {
		t.Errorf("got %v", got)
	}
}

func TestClosingIssueURLsDeduplicates(t *testing.T) {
	body := "fixes #42\n\nfixes #42"
	got := ClosingIssueURLs(body, "github.com", "acme/widgets")
	if len(got) != 1 {
		t.Errorf("expected 1 url, got %v", got)
	}
}

func TestClosingIssueURLsNoRefs(t *testing.T) {
	if got := ClosingIssueURLs("just a refactor, see issue tracker", "github.com", "acme/widgets"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestParsePRURL(t *testing.T) {
	repo, n, err := ParsePRURL("https://github.com/acme/widgets/pull/17")
	if err != nil {
		t.Fatalf("ParsePRURL: %v", err)
	}
	if repo != "acme/widgets" || n != 17 {
		t.Errorf("repo=%q n=%d", repo, n)
	}

	if _, _, err := ParsePRURL("https://github.com/acme/widgets/issues/17"); err == nil {
		t.Error("expected error for issue url")
	}
}

func TestIsPRURL(t *testing.T) {
	if !IsPRURL("https://github.com/acme/widgets/pull/17") {
		t.Error("pull url not recognized")
	}
	if IsPRURL("https://github.com/acme/widgets/issues/17") {
		t.Error("issue url misrecognized as PR")
	}
}

func TestItemNumber(t *testing.T) {
	if n := ItemNumber("https://github.com/acme/widgets/issues/42"); n != 42 {
		t.Errorf("issue number = %d", n)
	}
	if n := ItemNumber("https://github.com/acme/widgets/pull/17"); n != 17 {
		t.Errorf("pr number = %d", n)
	}
	if n := ItemNumber("https://github.com/acme/widgets"); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}
