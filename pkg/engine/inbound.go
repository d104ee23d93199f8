package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// inbound materializes work items as cards: new items become cards in their
// mapped list, known items have name/labels/metadata refreshed. Description
// text a human edited since the last run is never overwritten.
func (e *Engine) inbound(ctx context.Context, bctx *board.Context, ix *cardIndex, items []WorkItem, stats *RunStats) {
	for _, it := range items {
		if err := e.syncItem(ctx, bctx, ix, it, stats); err != nil {
			log.Warnf("inbound %s: %v", it.URL, err)
			stats.Errors++
		}
	}
}

func (e *Engine) syncItem(ctx context.Context, bctx *board.Context, ix *cardIndex, it WorkItem, stats *RunStats) error {
	card := ix.find(it.ProjectItemID, it.URL)

	desiredBase := buildBase(it)
	sourceHash := meta.Hash(desiredBase)
	base, hash := desiredBase, sourceHash

	var prev *meta.SyncMetadata
	if card != nil {
		prev = ix.metaFor(card.ID)
		if prev != nil && prev.ContentHash != "" {
			currentBase := meta.ExtractBase(card.Desc)
			edited := meta.Hash(currentBase) != prev.ContentHash
			// pristine means the last write was exactly the generated body.
			// Anything else (an adopted human edit, an appended PR
			// reference) must never be regenerated away, no matter how
			// many runs have passed since.
			pristine := prev.ContentHash == prev.SourceHash
			upstreamChanged := prev.SourceHash != sourceHash
			if edited || !pristine || !upstreamChanged {
				base, hash = currentBase, meta.Hash(currentBase)
			}
		}
	}

	m := &meta.SyncMetadata{
		Source:      string(it.Source),
		URL:         it.URL,
		Status:      string(it.Status),
		LastSeen:    e.now(),
		ContentHash: hash,
		SourceHash:  sourceHash,
	}
	if it.Source == SourceProject {
		m.ItemID = it.ProjectItemID
	}
	if prev != nil {
		m.IssueID = prev.IssueID
		m.PRID = prev.PRID
		m.LastTrelloMove = prev.LastTrelloMove
		if m.ItemID == "" {
			m.ItemID = prev.ItemID
		}
	}

	desc := meta.UpdateDescription(base, meta.Format(m))
	name := cardName(it)
	label := policy.LabelGitHub
	if it.Source == SourceReview {
		label = policy.LabelReview
	}

	if card == nil {
		targetList := policy.ListReady
		if it.Source == SourceProject {
			targetList = policy.WorkStatusToList(it.Status)
		}
		listID := bctx.ListID(targetList)
		if listID == "" {
			return fmt.Errorf("no list id for %q", targetList)
		}
		created, err := e.trello.CreateCard(ctx, trello.CardInput{
			ListID:   listID,
			Name:     name,
			Desc:     desc,
			LabelIDs: []string{bctx.LabelID(label)},
		})
		if err != nil {
			return err
		}
		ix.add(&created)
		stats.Created++
		e.emit("trello.card.created", map[string]any{
			"cardId": created.ID, "name": name, "url": it.URL, "list": targetList,
		})
		return nil
	}

	// Labels are additive: the required label joins whatever is already set.
	labels := unionLabels(card.IDLabels, bctx.LabelID(label))

	sameName := card.Name == name
	sameLabels := len(labels) == len(card.IDLabels)
	sameMeta := prev != nil && metaEquivalent(prev, m) && meta.ExtractBase(card.Desc) == base
	if sameName && sameLabels && sameMeta {
		return nil // nothing drifted, no write
	}

	upd := trello.CardUpdate{Desc: &desc}
	if !sameName {
		upd.Name = &name
	}
	if !sameLabels {
		upd.LabelIDs = &labels
	}
	updated, err := e.trello.UpdateCard(ctx, card.ID, upd)
	if err != nil {
		return err
	}
	if updated.ID == "" {
		// Doubles and thin clients may return an empty body; patch locally.
		card.Name, card.Desc, card.IDLabels = name, desc, labels
		updated = *card
	}
	ix.update(&updated)
	stats.Updated++
	e.emit("trello.card.updated", map[string]any{"cardId": card.ID, "url": it.URL})
	return nil
}

// buildBase produces the system-generated description body for an item.
func buildBase(it WorkItem) string {
	if it.Body == "" {
		return it.URL
	}
	return it.URL + "\n\n" + it.Body
}

func cardName(it WorkItem) string {
	if it.Source == SourceReview {
		return fmt.Sprintf("REVIEW: %s %s", it.Repo, it.Title)
	}
	if it.Repo == "" || it.Number == 0 {
		return "WORK: " + it.Title
	}
	return fmt.Sprintf("WORK: %s #%d %s", it.Repo, it.Number, it.Title)
}

func unionLabels(existing []string, required string) []string {
	out := append([]string(nil), existing...)
	for _, id := range out {
		if id == required {
			return out
		}
	}
	if required != "" {
		out = append(out, required)
	}
	sort.Strings(out)
	return out
}

// metaEquivalent compares metadata ignoring last_seen, which is refreshed on
// every write and must not by itself cause one.
func metaEquivalent(a, b *meta.SyncMetadata) bool {
	return a.Source == b.Source &&
		a.ItemID == b.ItemID &&
		a.IssueID == b.IssueID &&
		a.PRID == b.PRID &&
		a.URL == b.URL &&
		a.Status == b.Status &&
		a.LastTrelloMove.Equal(b.LastTrelloMove) &&
		a.ContentHash == b.ContentHash &&
		a.SourceHash == b.SourceHash
}
