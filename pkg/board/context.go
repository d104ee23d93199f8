package board

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// API is the slice of the Trello client the loader needs.
type API interface {
	BoardLists(ctx context.Context, boardID string) ([]trello.List, error)
	CreateList(ctx context.Context, boardID, name string) (trello.List, error)
	BoardLabels(ctx context.Context, boardID string) ([]trello.Label, error)
	CreateLabel(ctx context.Context, boardID, name, color string) (trello.Label, error)
}

// Context holds the name→entity lookups every sync pass depends on. Loaded
// once per run, then treated as immutable.
type Context struct {
	BoardID string
	Lists   map[string]trello.List  // canonical list name → list
	Labels  map[string]trello.Label // label name → label

	listNames map[string]string // list id → canonical name
}

// Label colors used when provisioning a fresh board.
var labelColors = map[string]string{
	policy.LabelGitHub: "purple",
	policy.LabelReview: "yellow",
}

// Load fetches the board's lists and labels and verifies the required set
// exists. With allowCreate it provisions anything missing (first-run
// bootstrap); otherwise a missing list or label is a fatal, named error.
// Existing lists and labels are never renamed or deleted.
func Load(ctx context.Context, api API, mapper *policy.Mapper, boardID string, allowCreate bool) (*Context, error) {
	lists, err := api.BoardLists(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}
	labels, err := api.BoardLabels(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}

	bctx := &Context{
		BoardID:   boardID,
		Lists:     make(map[string]trello.List, len(lists)),
		Labels:    make(map[string]trello.Label, len(labels)),
		listNames: make(map[string]string, len(lists)),
	}
	for _, l := range lists {
		canonical := mapper.CanonicalList(l.Name)
		bctx.Lists[canonical] = l
		bctx.listNames[l.ID] = canonical
	}
	for _, l := range labels {
		if l.Name != "" {
			bctx.Labels[l.Name] = l
		}
	}

	for _, name := range policy.RequiredLists {
		if _, ok := bctx.Lists[name]; ok {
			continue
		}
		if !allowCreate {
			return nil, fmt.Errorf("board %s is missing required list %q (run provision)", boardID, name)
		}
		created, err := api.CreateList(ctx, boardID, name)
		if err != nil {
			return nil, fmt.Errorf("provision list %q: %w", name, err)
		}
		log.Infof("provisioned list %q on board %s", name, boardID)
		bctx.Lists[name] = created
		bctx.listNames[created.ID] = name
	}
	for _, name := range policy.RequiredLabels {
		if _, ok := bctx.Labels[name]; ok {
			continue
		}
		if !allowCreate {
			return nil, fmt.Errorf("board %s is missing required label %q (run provision)", boardID, name)
		}
		created, err := api.CreateLabel(ctx, boardID, name, labelColors[name])
		if err != nil {
			return nil, fmt.Errorf("provision label %q: %w", name, err)
		}
		log.Infof("provisioned label %q on board %s", name, boardID)
		bctx.Labels[name] = created
	}

	return bctx, nil
}

// ListID resolves a canonical list name to its id.
func (c *Context) ListID(name string) string {
	return c.Lists[name].ID
}

// ListName resolves a list id back to its canonical name, or "".
func (c *Context) ListName(listID string) string {
	return c.listNames[listID]
}

// LabelID resolves a label name to its id.
func (c *Context) LabelID(name string) string {
	return c.Labels[name].ID
}

// LabelName resolves a label id back to its name, or "".
func (c *Context) LabelName(labelID string) string {
	for name, l := range c.Labels {
		if l.ID == labelID {
			return name
		}
	}
	return ""
}
