package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/state"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// outbound detects cards whose list changed since the last snapshot and
// pushes the corresponding status to the external project, then writes a
// fresh snapshot. A card failing to resolve a status name is skipped (its
// misconfiguration is logged), never the snapshot write. A transient push
// failure keeps the card's previous snapshot entry, so the move is pushed
// again on the next run.
func (e *Engine) outbound(ctx context.Context, bctx *board.Context, ix *cardIndex, stats *RunStats) error {
	prev, err := e.store.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	// Cards whose push failed this run; their previous snapshot entry is
	// carried forward so the changed-list check fires again next run.
	failed := make(map[string]bool)

	for _, card := range ix.all() {
		m := ix.metaFor(card.ID)
		if m == nil || m.ItemID == "" {
			continue
		}
		labelNames := cardLabelNames(bctx, card)
		if !labelNames[policy.LabelGitHub] {
			continue // not a primary-source card
		}
		if prev != nil {
			if entry, ok := prev.Trello[card.ID]; ok && entry.ListID == card.IDList {
				continue // unchanged since last observation
			}
		}

		listName := bctx.ListName(card.IDList)
		statusName, err := policy.ListToGHStatusName(listName, labelNames[policy.LabelReview])
		if err != nil {
			log.Errorf("outbound card %s: %v", card.ID, err)
			stats.Errors++
			continue
		}
		if err := e.github.UpdateProjectItemStatus(ctx, e.projectID, m.ItemID, statusName); err != nil {
			log.Warnf("outbound card %s: %v", card.ID, err)
			stats.Errors++
			failed[card.ID] = true
			continue
		}

		m.LastTrelloMove = e.now()
		m.LastSeen = e.now()
		desc := meta.UpdateDescription(meta.ExtractBase(card.Desc), meta.Format(m))
		if updated, err := e.trello.UpdateCard(ctx, card.ID, trello.CardUpdate{Desc: &desc}); err != nil {
			log.Warnf("outbound card %s: stamp move: %v", card.ID, err)
		} else if updated.ID != "" {
			updated.IDList = card.IDList
			ix.update(&updated)
		} else {
			card.Desc = desc
			ix.update(card)
		}

		stats.StatusPushes++
		e.emit("github.project.status.updated", map[string]any{
			"cardId": card.ID, "itemId": m.ItemID, "status": statusName, "url": m.URL,
		})
	}

	// The fresh snapshot is the comparison baseline for the next run; it is
	// written even when individual pushes failed.
	snap := state.Snapshot{Trello: make(map[string]state.CardState, len(ix.all()))}
	for _, card := range ix.all() {
		if failed[card.ID] {
			// Recording the new list here would make the next run see
			// "unchanged" and drop the retry; keep the old observation (or
			// none, which also counts as changed).
			if prev != nil {
				if entry, ok := prev.Trello[card.ID]; ok {
					snap.Trello[card.ID] = entry
				}
			}
			continue
		}
		names := make([]string, 0, len(card.IDLabels))
		for _, id := range card.IDLabels {
			if n := bctx.LabelName(id); n != "" {
				names = append(names, n)
			}
		}
		entry := state.CardState{ListID: card.IDList, Labels: names}
		if m := ix.metaFor(card.ID); m != nil {
			entry.SyncURL = m.URL
		}
		snap.Trello[card.ID] = entry
	}
	if err := e.store.AppendSnapshot(snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func cardLabelNames(bctx *board.Context, card *trello.Card) map[string]bool {
	names := make(map[string]bool, len(card.IDLabels))
	for _, id := range card.IDLabels {
		if n := bctx.LabelName(id); n != "" {
			names[n] = true
		}
	}
	return names
}
