package policy

import (
	"fmt"
	"strings"
)

// Status is the canonical workflow status shared by both sides of the sync.
type Status string

const (
	StatusDesign     Status = "design"
	StatusReady      Status = "ready"
	StatusNext       Status = "next"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Canonical list names on the board.
const (
	ListInbox   = "Inbox"
	ListTriage  = "Triage"
	ListReady   = "Ready"
	ListDoing   = "Doing"
	ListWaiting = "Waiting"
	ListDone    = "Done"
)

// Labels the syncer relies on. LabelGitHub marks cards whose list placement is
// pushed back to the external project; LabelReview marks review-request cards.
const (
	LabelGitHub = "github"
	LabelReview = "review"
)

// RequiredLists and RequiredLabels must exist on the board before any pass runs.
var (
	RequiredLists  = []string{ListInbox, ListTriage, ListReady, ListDoing, ListWaiting, ListDone}
	RequiredLabels = []string{LabelGitHub, LabelReview}
)

// CanonicalStatus maps an external project status name (emoji prefixes and
// all) onto the canonical vocabulary. Total: anything unrecognized lands in
// design, i.e. the triage bucket.
func CanonicalStatus(name string) Status {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "progress") || strings.Contains(n, "doing"):
		return StatusInProgress
	case strings.Contains(n, "review"):
		return StatusInReview
	case strings.Contains(n, "block") || strings.Contains(n, "wait"):
		return StatusBlocked
	case strings.Contains(n, "done") || strings.Contains(n, "ship"):
		return StatusDone
	case strings.Contains(n, "next"):
		return StatusNext
	case strings.Contains(n, "ready"):
		return StatusReady
	default:
		return StatusDesign
	}
}

// WorkStatusToList maps a canonical status onto a board list name. Total.
func WorkStatusToList(s Status) string {
	switch s {
	case StatusReady, StatusNext:
		return ListReady
	case StatusInProgress:
		return ListDoing
	case StatusInReview, StatusBlocked:
		return ListWaiting
	case StatusDone:
		return ListDone
	default:
		return ListTriage
	}
}

// GHStatusToList composes the two maps for project-sourced items.
func GHStatusToList(name string) string {
	return WorkStatusToList(CanonicalStatus(name))
}

// ListToGHStatusName resolves the external single-select status name for a
// canonical list. Waiting is ambiguous between blocked and in-review, so the
// review-label flag disambiguates. An unknown list is a configuration error.
func ListToGHStatusName(list string, review bool) (string, error) {
	switch list {
	case ListDoing:
		return "In progress", nil
	case ListReady:
		return "Ready", nil
	case ListWaiting:
		if review {
			return "In review", nil
		}
		return "Blocked", nil
	case ListDone:
		return "Done", nil
	case ListTriage:
		return "Design", nil
	case ListInbox:
		return "Backlog", nil
	}
	return "", fmt.Errorf("no external status mapping for list %q", list)
}

// defaultAliases absorbs cosmetic list renames observed in the wild.
var defaultAliases = map[string]string{
	"done (this week)":    ListDone,
	"doing (today)":       ListDoing,
	"waiting / in review": ListWaiting,
	"in progress":         ListDoing,
	"backlog":             ListTriage,
}

// Mapper canonicalizes list names, merging the built-in alias table with
// configured extras. Extras win on conflict.
type Mapper struct {
	aliases map[string]string
}

// NewMapper builds a Mapper; extra maps alias → canonical list name.
func NewMapper(extra map[string]string) *Mapper {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Mapper{aliases: aliases}
}

// CanonicalList resolves a board list name through the alias table. Canonical
// names pass through unchanged; unknown names are returned trimmed so lookups
// against them fail loudly rather than silently rebucketing.
func (m *Mapper) CanonicalList(name string) string {
	trimmed := strings.TrimSpace(name)
	key := strings.ToLower(trimmed)
	for _, canonical := range RequiredLists {
		if key == strings.ToLower(canonical) {
			return canonical
		}
	}
	if canonical, ok := m.aliases[key]; ok {
		return canonical
	}
	return trimmed
}
