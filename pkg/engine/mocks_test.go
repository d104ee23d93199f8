package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/mklimuk/board-pilot/pkg/gh"
	"github.com/mklimuk/board-pilot/pkg/policy"
	"github.com/mklimuk/board-pilot/pkg/state"
	"github.com/mklimuk/board-pilot/pkg/trello"
)

// mockTrello is a test double for TrelloAPI backed by in-memory board state.
type mockTrello struct {
	lists  []trello.List
	labels []trello.Label
	cards  map[string]*trello.Card
	nextID int

	createCalls int
	updateCalls int
	moveCalls   int
}

func newMockTrello() *mockTrello {
	m := &mockTrello{cards: make(map[string]*trello.Card)}
	for _, name := range policy.RequiredLists {
		m.lists = append(m.lists, trello.List{ID: "list-" + name, Name: name})
	}
	for _, name := range policy.RequiredLabels {
		m.labels = append(m.labels, trello.Label{ID: "label-" + name, Name: name})
	}
	return m
}

func (m *mockTrello) seedCard(card trello.Card) *trello.Card {
	c := card
	m.cards[c.ID] = &c
	return &c
}

func (m *mockTrello) BoardLists(_ context.Context, _ string) ([]trello.List, error) {
	return m.lists, nil
}

func (m *mockTrello) CreateList(_ context.Context, _ string, name string) (trello.List, error) {
	l := trello.List{ID: "list-" + name, Name: name}
	m.lists = append(m.lists, l)
	return l, nil
}

func (m *mockTrello) BoardLabels(_ context.Context, _ string) ([]trello.Label, error) {
	return m.labels, nil
}

func (m *mockTrello) CreateLabel(_ context.Context, _ string, name, color string) (trello.Label, error) {
	l := trello.Label{ID: "label-" + name, Name: name, Color: color}
	m.labels = append(m.labels, l)
	return l, nil
}

func (m *mockTrello) BoardCards(_ context.Context, _ string) ([]trello.Card, error) {
	var out []trello.Card
	for _, c := range m.cards {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockTrello) CreateCard(_ context.Context, in trello.CardInput) (trello.Card, error) {
	m.createCalls++
	m.nextID++
	c := &trello.Card{
		ID:       fmt.Sprintf("card-%d", m.nextID),
		Name:     in.Name,
		Desc:     in.Desc,
		IDList:   in.ListID,
		IDLabels: in.LabelIDs,
	}
	m.cards[c.ID] = c
	return *c, nil
}

func (m *mockTrello) UpdateCard(_ context.Context, cardID string, upd trello.CardUpdate) (trello.Card, error) {
	m.updateCalls++
	c, ok := m.cards[cardID]
	if !ok {
		return trello.Card{}, fmt.Errorf("no such card %s", cardID)
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Desc != nil {
		c.Desc = *upd.Desc
	}
	if upd.LabelIDs != nil {
		c.IDLabels = *upd.LabelIDs
	}
	return *c, nil
}

func (m *mockTrello) MoveCard(_ context.Context, cardID, listID string) error {
	m.moveCalls++
	c, ok := m.cards[cardID]
	if !ok {
		return fmt.Errorf("no such card %s", cardID)
	}
	c.IDList = listID
	return nil
}

func (m *mockTrello) cardsInList(listID string) []*trello.Card {
	var out []*trello.Card
	for _, c := range m.cards {
		if c.IDList == listID {
			out = append(out, c)
		}
	}
	return out
}

type statusUpdate struct {
	ItemID string
	Status string
}

// mockGitHub is a test double for GitHubAPI.
type mockGitHub struct {
	viewer   string
	items    []gh.ProjectItem
	requests []gh.ReviewRequest
	authored []string
	prs      map[string]*gh.PullRequest

	statusUpdates []statusUpdate
	prFetches     int

	// failNextPush, when set, is returned by the next UpdateProjectItemStatus
	// call and then cleared.
	failNextPush error
}

func newMockGitHub() *mockGitHub {
	return &mockGitHub{viewer: "hubert", prs: make(map[string]*gh.PullRequest)}
}

func (m *mockGitHub) Viewer(_ context.Context) (string, error) {
	return m.viewer, nil
}

func (m *mockGitHub) ProjectItems(_ context.Context, _ string) ([]gh.ProjectItem, error) {
	return m.items, nil
}

func (m *mockGitHub) ReviewRequested(_ context.Context) ([]gh.ReviewRequest, error) {
	return m.requests, nil
}

func (m *mockGitHub) AuthoredOpenPRs(_ context.Context) ([]string, error) {
	return m.authored, nil
}

func (m *mockGitHub) PullRequestDetails(_ context.Context, prURL string) (*gh.PullRequest, error) {
	m.prFetches++
	pr, ok := m.prs[prURL]
	if !ok {
		return nil, fmt.Errorf("no such PR %s", prURL)
	}
	return pr, nil
}

func (m *mockGitHub) UpdateProjectItemStatus(_ context.Context, _, itemID, statusName string) error {
	if m.failNextPush != nil {
		err := m.failNextPush
		m.failNextPush = nil
		return err
	}
	m.statusUpdates = append(m.statusUpdates, statusUpdate{ItemID: itemID, Status: statusName})
	return nil
}

func newTestEngine(t *testing.T, mt *mockTrello, mg *mockGitHub) *Engine {
	t.Helper()
	return New(Options{
		Trello:    mt,
		GitHub:    mg,
		Store:     state.NewStore(t.TempDir()),
		BoardID:   "b1",
		ProjectID: "p1",
		Host:      "github.com",
	})
}
