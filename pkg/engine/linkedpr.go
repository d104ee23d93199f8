package engine

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// linkedPRs associates candidate pull requests with the issue cards they
// close and advances those cards based on review outcome. Returns the set of
// PR urls attributed to a card so the caller can keep them from becoming
// standalone review cards.
func (e *Engine) linkedPRs(ctx context.Context, bctx *board.Context, ix *cardIndex, prURLs []string, viewer string, stats *RunStats) map[string]bool {
	attributed := make(map[string]bool)
	waitingID := bctx.ListID(policy.ListWaiting)

	for _, prURL := range prURLs {
		pr, err := e.prDetails(ctx, prURL)
		if err != nil {
			log.Warnf("linked-pr %s: %v", prURL, err)
			stats.Errors++
			continue
		}
		for _, issueURL := range gh.ClosingIssueURLs(pr.Body, e.host, pr.Repo) {
			card := ix.byCardURL(issueURL)
			if card == nil {
				continue
			}
			attributed[prURL] = true

			if err := e.recordRelatedPR(ctx, ix, card, pr); err != nil {
				log.Warnf("linked-pr %s: record on card %s: %v", prURL, card.ID, err)
				stats.Errors++
			}

			target := linkedPRTarget(pr, viewer)
			if target == "" {
				continue
			}
			targetID := bctx.ListID(target)
			// Moves only ever originate from Waiting; this pass never pulls
			// a card out of Doing or Done.
			if card.IDList != waitingID || targetID == "" || targetID == card.IDList {
				continue
			}
			if err := e.trello.MoveCard(ctx, card.ID, targetID); err != nil {
				log.Warnf("linked-pr %s: move card %s: %v", prURL, card.ID, err)
				stats.Errors++
				continue
			}
			card.IDList = targetID
			stats.Moved++
			e.emit("trello.card.moved.linked-pr", map[string]any{
				"cardId": card.ID, "pr": prURL, "issue": issueURL, "list": target,
			})
		}
	}
	return attributed
}

// recordRelatedPR appends a reference to the PR in the card's user-owned text
// exactly once, then re-hashes and re-embeds the metadata.
func (e *Engine) recordRelatedPR(ctx context.Context, ix *cardIndex, card *trello.Card, pr *gh.PullRequest) error {
	base := meta.ExtractBase(card.Desc)
	if strings.Contains(base, pr.URL) {
		return nil
	}
	base = strings.TrimSpace(base + "\n\nRelated PR: " + pr.URL)

	m := ix.metaFor(card.ID)
	if m == nil {
		m = &meta.SyncMetadata{}
	}
	m.ContentHash = meta.Hash(base)
	m.LastSeen = e.now()
	desc := meta.UpdateDescription(base, meta.Format(m))
	updated, err := e.trello.UpdateCard(ctx, card.ID, trello.CardUpdate{Desc: &desc})
	if err != nil {
		return err
	}
	if updated.ID == "" {
		card.Desc = desc
		updated = *card
	}
	ix.update(&updated)
	return nil
}

// linkedPRTarget evaluates the decision table in fixed order; the first
// matching rule wins. An empty result means leave the card alone.
func linkedPRTarget(pr *gh.PullRequest, viewer string) string {
	if pr.Merged {
		return policy.ListDone
	}
	if pr.Author != viewer {
		return "" // not ours to manage
	}
	if hasReview(pr, "CHANGES_REQUESTED") {
		return policy.ListReady
	}
	if hasReview(pr, "APPROVED") {
		return policy.ListReady
	}
	if pr.ReviewRequests > 0 {
		return policy.ListWaiting
	}
	if latest := latestNonComment(pr); latest == "APPROVED" && pr.Mergeable {
		return policy.ListReady
	}
	return ""
}

func hasReview(pr *gh.PullRequest, reviewState string) bool {
	for _, r := range pr.Reviews {
		if r.State == reviewState {
			return true
		}
	}
	return false
}

func latestNonComment(pr *gh.PullRequest) string {
	for i := len(pr.Reviews) - 1; i >= 0; i-- {
		if pr.Reviews[i].State != "COMMENTED" {
			return pr.Reviews[i].State
		}
	}
	return ""
}
