package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// seedIssueCard places a tracked issue card in the given list.
func seedIssueCard(mt *mockTrello, listID string) *trello.Card {
	base := issueURL + "\n\nThe widget assembly line wobbles."
	desc := meta.UpdateDescription(base, meta.Format(&meta.SyncMetadata{
		Source:      "github-project",
		ItemID:      "PVTI_42",
		URL:         issueURL,
		Status:      "in_review",
		ContentHash: meta.Hash(base),
	}))
	return mt.seedCard(trello.Card{
		ID:       "card-issue",
		Name:     "WORK: acme/widgets #42 Flaky widget assembly",
		Desc:     desc,
		IDList:   listID,
		IDLabels: []string{"label-github"},
	})
}

func approvedPR(author string) *gh.PullRequest {
	return &gh.PullRequest{
		URL:       prURL,
		Number:    17,
		Repo:      "acme/widgets",
		Author:    author,
		Body:      "Steadies the line.\n\nfixes #42",
		Mergeable: true,
		Reviews:   []gh.Review{{Author: "colleague", State: "APPROVED"}},
	}
}

func TestLinkedPRMovesCardFromWaitingToReady(t *testing.T) {
	mt := newMockTrello()
	mg := newMockGitHub()
	seedIssueCard(mt, "list-Waiting")
	mg.authored = []string{prURL}
	mg.prs[prURL] = approvedPR("hubert")

	e := newTestEngine(t, mt, mg)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	card := mt.cards["card-issue"]
	if card.IDList != "list-Ready" {
		t.Errorf("card list = %q, want list-Ready", card.IDList)
	}
	if base := meta.ExtractBase(card.Desc); !strings.Contains(base, "Related PR: "+prURL) {
		t.Errorf("related PR line missing from base:\n%s", base)
	}

	// Re-running must not move it again: the pass only acts on Waiting.
	moves := mt.moveCalls
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if mt.moveCalls != moves {
		t.Errorf("card moved twice: %d -> %d", moves, mt.moveCalls)
	}
}

func TestLinkedPRRecordsRelatedPROnce(t *testing.T) {
	mt := newMockTrello()
	mg := newMockGitHub()
	seedIssueCard(mt, "list-Doing")
	mg.authored = []string{prURL}
	mg.prs[prURL] = approvedPR("hubert")

	e := newTestEngine(t, mt, mg)
	for i := 0; i < 3; i++ {
		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	base := meta.ExtractBase(mt.cards["card-issue"].Desc)
	if got := strings.Count(base, prURL); got != 1 {
		t.Errorf("related PR recorded %d times:\n%s", got, base)
	}
	// Doing is not a source list for linked-PR moves.
	if mt.cards["card-issue"].IDList != "list-Doing" {
		t.Errorf("pass must not pull a card out of Doing, got %q", mt.cards["card-issue"].IDList)
	}
}

func TestLinkedPRSteadyStateWithProjectItem(t *testing.T) {
	mt := newMockTrello()
	mg := newMockGitHub()
	// The item arrives through the project feed AND has an authored closing
	// PR, so inbound and linked-PR both touch the same card every run.
	mg.items = []gh.ProjectItem{projectIssue("🏗 In progress")}
	mg.authored = []string{prURL}
	mg.prs[prURL] = approvedPR("hubert")

	e := newTestEngine(t, mt, mg)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	creates, updates, moves := mt.createCalls, mt.updateCalls, mt.moveCalls
	pushes := len(mg.statusUpdates)
	for i := 0; i < 3; i++ {
		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if mt.createCalls != creates || mt.updateCalls != updates || mt.moveCalls != moves {
		t.Errorf("steady state still writes: creates %d->%d updates %d->%d moves %d->%d",
			creates, mt.createCalls, updates, mt.updateCalls, moves, mt.moveCalls)
	}
	if len(mg.statusUpdates) != pushes {
		t.Errorf("steady state still pushes: %d -> %d", pushes, len(mg.statusUpdates))
	}

	var card *trello.Card
	for _, c := range mt.cards {
		card = c
	}
	base := meta.ExtractBase(card.Desc)
	if got := strings.Count(base, "Related PR: "+prURL); got != 1 {
		t.Errorf("related PR recorded %d times:\n%s", got, base)
	}
}

func TestLinkedPRAttributedNotCardified(t *testing.T) {
	mt := newMockTrello()
	mg := newMockGitHub()
	seedIssueCard(mt, "list-Waiting")
	// The PR is a review request addressed to us AND closes a tracked issue.
	mg.requests = []gh.ReviewRequest{{Title: "Steady the line", URL: prURL, Repo: "acme/widgets", Number: 17}}
	mg.prs[prURL] = approvedPR("colleague")

	e := newTestEngine(t, mt, mg)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mt.cards) != 1 {
		t.Errorf("attributed PR should not become a standalone review card, got %d cards", len(mt.cards))
	}
}

func TestLinkedPRTargetDecisionTable(t *testing.T) {
	cases := []struct {
		name   string
		pr     gh.PullRequest
		viewer string
		want   string
	}{
		{"merged wins regardless of author", gh.PullRequest{Merged: true, Author: "colleague"}, "hubert", "Done"},
		{"foreign author is not ours to manage", gh.PullRequest{Author: "colleague", Reviews: []gh.Review{{State: "CHANGES_REQUESTED"}}}, "hubert", ""},
		{"changes requested goes back to author", gh.PullRequest{Author: "hubert", Reviews: []gh.Review{{State: "CHANGES_REQUESTED"}}}, "hubert", "Ready"},
		{"approved is ready", gh.PullRequest{Author: "hubert", Reviews: []gh.Review{{State: "APPROVED"}}}, "hubert", "Ready"},
		{"open review requests wait", gh.PullRequest{Author: "hubert", ReviewRequests: 2}, "hubert", "Waiting"},
		{"no signal is a no-op", gh.PullRequest{Author: "hubert"}, "hubert", ""},
		{"comment-only reviews are no signal", gh.PullRequest{Author: "hubert", Mergeable: true, Reviews: []gh.Review{{State: "COMMENTED"}}}, "hubert", ""},
	}
	for _, c := range cases {
		pr := c.pr
		if got := linkedPRTarget(&pr, c.viewer); got != c.want {
			t.Errorf("%s: target = %q, want %q", c.name, got, c.want)
		}
	}
}
