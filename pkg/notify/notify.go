package notify

import (
	"fmt"
	"time"

	"github.com/mklimuk/board-pilot/pkg/state"
)

// Announcer receives sync events as they happen. Announce must not block the
// sync loop; the built-in transports hand the send off to a goroutine.
type Announcer interface {
	Announce(evt state.Event)
}

// Fanout forwards each event to every registered announcer.
type Fanout []Announcer

func (f Fanout) Announce(evt state.Event) {
	for _, a := range f {
		a.Announce(evt)
	}
}

// FormatEvent renders an event as a short human-readable line. Unknown event
// types fall back to the raw type name so nothing is silently dropped.
func FormatEvent(evt state.Event) string {
	p := evt.Payload
	switch evt.Type {
	case "trello.card.created":
		return fmt.Sprintf("new card %q in %s (%s)", str(p, "name"), str(p, "list"), str(p, "url"))
	case "trello.card.updated":
		return fmt.Sprintf("card refreshed from %s", str(p, "url"))
	case "trello.card.moved.linked-pr":
		return fmt.Sprintf("moved card to %s, linked PR %s", str(p, "list"), str(p, "pr"))
	case "trello.card.done.closed":
		return fmt.Sprintf("closed upstream, card moved to Done (%s)", str(p, "url"))
	case "trello.review.done":
		return fmt.Sprintf("review approved, card retired (%s)", str(p, "pr"))
	case "github.project.status.updated":
		return fmt.Sprintf("pushed status %q to project (%s)", str(p, "status"), str(p, "url"))
	case "run.completed":
		return fmt.Sprintf("sync run done: %v created, %v updated, %v moved, %v pushed, %v errors",
			p["created"], p["updated"], p["moved"], p["pushed"], p["errors"])
	default:
		return evt.Type
	}
}

// FormatRunSummary renders a ledger row as a one-line report, used by the
// /status command.
func FormatRunSummary(finished time.Time, created, updated, moved, pushed, errs int) string {
	return fmt.Sprintf("last run %s: %d created, %d updated, %d moved, %d pushed, %d errors",
		finished.Format("2006-01-02 15:04"), created, updated, moved, pushed, errs)
}

func str(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
