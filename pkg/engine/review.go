package engine

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/policy"
)

// reviewSweep scans review-labeled cards and retires the ones the current
// user has already approved. Side-effect free for everything else.
func (e *Engine) reviewSweep(ctx context.Context, bctx *board.Context, ix *cardIndex, viewer string, stats *RunStats) {
	doneID := bctx.ListID(policy.ListDone)
	for _, card := range ix.all() {
		if !cardLabelNames(bctx, card)[policy.LabelReview] || card.IDList == doneID {
			continue
		}
		m := ix.metaFor(card.ID)
		if m == nil || !gh.IsPRURL(m.URL) {
			continue
		}
		pr, err := e.prDetails(ctx, m.URL)
		if err != nil {
			log.Warnf("review sweep %s: %v", m.URL, err)
			stats.Errors++
			continue
		}
		approved := false
		for _, r := range pr.Reviews {
			if r.Author == viewer && r.State == "APPROVED" {
				approved = true
				break
			}
		}
		if !approved {
			continue
		}
		if err := e.trello.MoveCard(ctx, card.ID, doneID); err != nil {
			log.Warnf("review sweep %s: move card %s: %v", m.URL, card.ID, err)
			stats.Errors++
			continue
		}
		card.IDList = doneID
		stats.Moved++
		e.emit("trello.review.done", map[string]any{"cardId": card.ID, "pr": m.URL})
	}
}
