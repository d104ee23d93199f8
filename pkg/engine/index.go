package engine

import (
	"github.com/mklimuk/board-pilot/pkg/meta"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// cardIndex tracks the board's cards and their parsed metadata for one run.
// Passes mutate it as they create, rewrite, and move cards so later passes
// and the snapshot see current state without refetching.
type cardIndex struct {
	order    []string
	cards    map[string]*trello.Card
	metas    map[string]*meta.SyncMetadata
	byItemID map[string]string // metadata item_id → card id
	byURL    map[string]string // metadata url → card id
}

func newCardIndex(cards []trello.Card) *cardIndex {
	ix := &cardIndex{
		cards:    make(map[string]*trello.Card, len(cards)),
		metas:    make(map[string]*meta.SyncMetadata, len(cards)),
		byItemID: make(map[string]string),
		byURL:    make(map[string]string),
	}
	for i := range cards {
		ix.add(&cards[i])
	}
	return ix
}

func (ix *cardIndex) add(card *trello.Card) {
	if _, ok := ix.cards[card.ID]; !ok {
		ix.order = append(ix.order, card.ID)
	}
	ix.cards[card.ID] = card
	m := meta.Parse(card.Desc)
	ix.metas[card.ID] = m
	if m == nil {
		return
	}
	if m.ItemID != "" {
		ix.byItemID[m.ItemID] = card.ID
	}
	if m.URL != "" {
		ix.byURL[m.URL] = card.ID
	}
}

// find resolves a card by item id first, then by url. A project item and a
// review request can share a url but never an item id, so the id-scoped
// lookup wins and prevents duplicate cards for re-sourced items.
func (ix *cardIndex) find(itemID, url string) *trello.Card {
	if itemID != "" {
		if id, ok := ix.byItemID[itemID]; ok {
			return ix.cards[id]
		}
	}
	if url != "" {
		if id, ok := ix.byURL[url]; ok {
			return ix.cards[id]
		}
	}
	return nil
}

func (ix *cardIndex) byCardURL(url string) *trello.Card {
	if id, ok := ix.byURL[url]; ok {
		return ix.cards[id]
	}
	return nil
}

// update re-registers a card after its description changed.
func (ix *cardIndex) update(card *trello.Card) {
	ix.add(card)
}

func (ix *cardIndex) metaFor(cardID string) *meta.SyncMetadata {
	return ix.metas[cardID]
}

func (ix *cardIndex) all() []*trello.Card {
	out := make([]*trello.Card, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.cards[id])
	}
	return out
}
