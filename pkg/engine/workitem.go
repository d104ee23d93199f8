package engine

import (
	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/policy"
)

// Source identifies which external feed produced a work item.
type Source string

const (
	SourceProject Source = "github-project"
	SourceReview  Source = "review-request"
)

// WorkItem is the canonical, source-agnostic unit of work. The url is the
// only key stable across runs and across sources; ids are source-scoped.
type WorkItem struct {
	ID            string
	Source        Source
	Type          string // issue | pr | review | task
	Title         string
	URL           string
	Repo          string
	Number        int
	Status        policy.Status
	Body          string
	ProjectItemID string
	Closed        bool
}

// NormalizeProjectItem converts a raw project item into a WorkItem. Items
// without a resolvable content url and title are not work items; those return
// nil and are skipped, not errored.
func NormalizeProjectItem(it gh.ProjectItem) *WorkItem {
	if it.URL == "" || it.Title == "" {
		return nil
	}
	itemType := "task"
	switch it.Type {
	case "Issue", "ISSUE":
		itemType = "issue"
	case "PullRequest", "PULL_REQUEST":
		itemType = "pr"
	}
	number := it.Number
	if number == 0 {
		number = gh.ItemNumber(it.URL)
	}
	return &WorkItem{
		ID:            it.ID,
		Source:        SourceProject,
		Type:          itemType,
		Title:         it.Title,
		URL:           it.URL,
		Repo:          it.Repo,
		Number:        number,
		Status:        policy.CanonicalStatus(it.Status),
		Body:          it.Body,
		ProjectItemID: it.ID,
		Closed:        it.State == "CLOSED" || it.State == "MERGED",
	}
}

// NormalizeReviewRequest converts a review request into a WorkItem. Review
// requests are always actionable, so this never fails and the status is
// pinned to ready.
func NormalizeReviewRequest(r gh.ReviewRequest) WorkItem {
	return WorkItem{
		ID:     r.URL,
		Source: SourceReview,
		Type:   "review",
		Title:  r.Title,
		URL:    r.URL,
		Repo:   r.Repo,
		Number: r.Number,
		Status: policy.StatusReady,
	}
}
