package engine

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// closedItems moves cards whose external item closed into the terminal list.
// Already-terminal cards are left alone, so observing a closed item on every
// subsequent run stays a no-op.
func (e *Engine) closedItems(ctx context.Context, bctx *board.Context, ix *cardIndex, items []WorkItem, stats *RunStats) {
	doneID := bctx.ListID(policy.ListDone)
	for _, it := range items {
		card := ix.find(it.ProjectItemID, it.URL)
		if card == nil || card.IDList == doneID {
			continue
		}
		if err := e.trello.MoveCard(ctx, card.ID, doneID); err != nil {
			log.Warnf("close %s: %v", it.URL, err)
			stats.Errors++
			continue
		}
		card.IDList = doneID

		// Refresh the embedded status so the card is self-describing.
		if m := ix.metaFor(card.ID); m != nil {
			m.Status = string(policy.StatusDone)
			m.LastSeen = e.now()
			desc := meta.UpdateDescription(meta.ExtractBase(card.Desc), meta.Format(m))
			if updated, err := e.trello.UpdateCard(ctx, card.ID, trello.CardUpdate{Desc: &desc}); err != nil {
				log.Warnf("refresh closed card %s: %v", card.ID, err)
			} else if updated.ID != "" {
				updated.IDList = doneID
				ix.update(&updated)
			} else {
				card.Desc = desc
				ix.update(card)
			}
		}

		stats.Moved++
		e.emit("trello.card.done.closed", map[string]any{"cardId": card.ID, "url": it.URL})
	}
}
