package engine

import (
	"context"

	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// TrelloAPI is the board surface the passes use, implemented by
// *trello.Client and by test doubles.
type TrelloAPI interface {
	BoardLists(ctx context.Context, boardID string) ([]trello.List, error)
	CreateList(ctx context.Context, boardID, name string) (trello.List, error)
	BoardLabels(ctx context.Context, boardID string) ([]trello.Label, error)
	CreateLabel(ctx context.Context, boardID, name, color string) (trello.Label, error)
	BoardCards(ctx context.Context, boardID string) ([]trello.Card, error)
	CreateCard(ctx context.Context, in trello.CardInput) (trello.Card, error)
	UpdateCard(ctx context.Context, cardID string, upd trello.CardUpdate) (trello.Card, error)
	MoveCard(ctx context.Context, cardID, listID string) error
}

// GitHubAPI is the issue/PR/project surface, implemented by *gh.Client.
type GitHubAPI interface {
	Viewer(ctx context.Context) (string, error)
	ProjectItems(ctx context.Context, projectID string) ([]gh.ProjectItem, error)
	ReviewRequested(ctx context.Context) ([]gh.ReviewRequest, error)
	AuthoredOpenPRs(ctx context.Context) ([]string, error)
	PullRequestDetails(ctx context.Context, prURL string) (*gh.PullRequest, error)
	UpdateProjectItemStatus(ctx context.Context, projectID, itemID, statusName string) error
}
