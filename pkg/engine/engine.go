package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/board-pilot/pkg/board"
	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/state"
)

// Engine runs the reconciliation passes against one board and one project.
// It is stateless between runs; the state store's event and snapshot logs
// carry everything needed for "since last run" detection.
type Engine struct {
	trello   TrelloAPI
	github   GitHubAPI
	store    *state.Store
	mapper   *policy.Mapper
	announce func(state.Event)

	boardID     string
	projectID   string
	host        string
	allowCreate bool

	// prCache is the per-run PR detail cache, rebuilt on each Run so no
	// state leaks across invocations.
	prCache map[string]*gh.PullRequest

	now func() time.Time
}

// Options configures a new Engine.
type Options struct {
	Trello      TrelloAPI
	GitHub      GitHubAPI
	Store       *state.Store
	Mapper      *policy.Mapper
	BoardID     string
	ProjectID   string
	Host        string
	AllowCreate bool
	// Announce, if set, receives every emitted event after it is persisted.
	Announce func(state.Event)
}

// New creates an Engine.
func New(opts Options) *Engine {
	mapper := opts.Mapper
	if mapper == nil {
		mapper = policy.NewMapper(nil)
	}
	return &Engine{
		trello:      opts.Trello,
		github:      opts.GitHub,
		store:       opts.Store,
		mapper:      mapper,
		announce:    opts.Announce,
		boardID:     opts.BoardID,
		projectID:   opts.ProjectID,
		host:        opts.Host,
		allowCreate: opts.AllowCreate,
		now:         time.Now,
	}
}

// RunStats summarizes one run for the ledger and notifiers.
type RunStats struct {
	Started      time.Time
	Finished     time.Time
	Created      int
	Updated      int
	Moved        int
	StatusPushes int
	Errors       int
}

// Run executes one full reconciliation: board context, inbound for project
// items, closed-item sweep, linked-PR pass, inbound for unattributed review
// requests, outbound push, review sweep. Configuration problems abort the
// run; a failure on a single item is logged and the run continues.
func (e *Engine) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{Started: e.now()}
	e.prCache = make(map[string]*gh.PullRequest)

	bctx, err := board.Load(ctx, e.trello, e.mapper, e.boardID, e.allowCreate)
	if err != nil {
		return nil, err
	}

	cards, err := e.trello.BoardCards(ctx, e.boardID)
	if err != nil {
		return nil, fmt.Errorf("fetch board cards: %w", err)
	}
	ix := newCardIndex(cards)

	viewer, err := e.github.Viewer(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}

	rawItems, err := e.github.ProjectItems(ctx, e.projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project items: %w", err)
	}
	var open, closed []WorkItem
	for _, raw := range rawItems {
		it := NormalizeProjectItem(raw)
		if it == nil {
			continue
		}
		if it.Closed {
			closed = append(closed, *it)
		} else {
			open = append(open, *it)
		}
	}

	e.inbound(ctx, bctx, ix, open, stats)
	e.closedItems(ctx, bctx, ix, closed, stats)

	requests, err := e.github.ReviewRequested(ctx)
	if err != nil {
		log.Warnf("fetch review requests: %v", err)
		stats.Errors++
	}
	authored, err := e.github.AuthoredOpenPRs(ctx)
	if err != nil {
		log.Warnf("fetch authored PRs: %v", err)
		stats.Errors++
	}

	prURLs := make([]string, 0, len(authored)+len(requests))
	seen := make(map[string]bool)
	for _, u := range authored {
		if !seen[u] {
			seen[u] = true
			prURLs = append(prURLs, u)
		}
	}
	for _, r := range requests {
		if !seen[r.URL] {
			seen[r.URL] = true
			prURLs = append(prURLs, r.URL)
		}
	}
	attributed := e.linkedPRs(ctx, bctx, ix, prURLs, viewer, stats)

	var reviews []WorkItem
	for _, r := range requests {
		if attributed[r.URL] {
			continue
		}
		reviews = append(reviews, NormalizeReviewRequest(r))
	}
	e.inbound(ctx, bctx, ix, reviews, stats)

	if err := e.outbound(ctx, bctx, ix, stats); err != nil {
		return nil, err
	}
	e.reviewSweep(ctx, bctx, ix, viewer, stats)

	stats.Finished = e.now()
	e.emit("run.completed", map[string]any{
		"created": stats.Created,
		"updated": stats.Updated,
		"moved":   stats.Moved,
		"pushed":  stats.StatusPushes,
		"errors":  stats.Errors,
	})
	log.Infof("run finished: %d created, %d updated, %d moved, %d pushed, %d errors",
		stats.Created, stats.Updated, stats.Moved, stats.StatusPushes, stats.Errors)
	return stats, nil
}

// emit appends an event to the log and forwards it to the announcer. A
// failed append is logged but never aborts a pass.
func (e *Engine) emit(evtType string, payload map[string]any) {
	evt, err := e.store.AppendEvent(evtType, payload)
	if err != nil {
		log.Errorf("append event %s: %v", evtType, err)
		return
	}
	if e.announce != nil {
		e.announce(evt)
	}
}

// prDetails fetches PR details through the per-run cache.
func (e *Engine) prDetails(ctx context.Context, prURL string) (*gh.PullRequest, error) {
	if pr, ok := e.prCache[prURL]; ok {
		return pr, nil
	}
	pr, err := e.github.PullRequestDetails(ctx, prURL)
	if err != nil {
		return nil, err
	}
	e.prCache[prURL] = pr
	return pr, nil
}
