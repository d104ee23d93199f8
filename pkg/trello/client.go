package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.trello.com/1"

// List is a lane on a board.
type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Label is a board label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Card is a board card as returned by the API.
type Card struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Desc             string    `json:"desc"`
	IDList           string    `json:"idList"`
	IDLabels         []string  `json:"idLabels"`
	URL              string    `json:"url,omitempty"`
	ShortURL         string    `json:"shortUrl,omitempty"`
	Closed           bool      `json:"closed,omitempty"`
	DateLastActivity time.Time `json:"dateLastActivity,omitempty"`
}

// CardInput holds the fields for card creation.
type CardInput struct {
	ListID   string   `json:"idList"`
	Name     string   `json:"name"`
	Desc     string   `json:"desc"`
	LabelIDs []string `json:"idLabels,omitempty"`
}

// CardUpdate holds optional card fields; nil fields are left untouched.
type CardUpdate struct {
	Name     *string   `json:"name,omitempty"`
	Desc     *string   `json:"desc,omitempty"`
	LabelIDs *[]string `json:"idLabels,omitempty"`
}

// Client is a minimal Trello REST client covering the card/list/label surface
// the syncer needs.
type Client struct {
	httpClient *http.Client
	key        string
	token      string
	baseURL    string
}

// NewClient creates a Trello client authenticated with an API key and token.
func NewClient(key, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		key:        key,
		token:      token,
		baseURL:    defaultBaseURL,
	}
}

// BoardLists returns the open lists on a board.
func (c *Client) BoardLists(ctx context.Context, boardID string) ([]List, error) {
	var lists []List
	q := url.Values{"filter": {"open"}}
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/lists", q, nil, &lists); err != nil {
		return nil, fmt.Errorf("fetch board lists: %w", err)
	}
	return lists, nil
}

// CreateList creates a list at the bottom of the board.
func (c *Client) CreateList(ctx context.Context, boardID, name string) (List, error) {
	var list List
	q := url.Values{"name": {name}, "idBoard": {boardID}, "pos": {"bottom"}}
	if err := c.do(ctx, http.MethodPost, "/lists", q, nil, &list); err != nil {
		return List{}, fmt.Errorf("create list %q: %w", name, err)
	}
	return list, nil
}

// BoardLabels returns the labels defined on a board.
func (c *Client) BoardLabels(ctx context.Context, boardID string) ([]Label, error) {
	var labels []Label
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/labels", nil, nil, &labels); err != nil {
		return nil, fmt.Errorf("fetch board labels: %w", err)
	}
	return labels, nil
}

// CreateLabel creates a named label on a board.
func (c *Client) CreateLabel(ctx context.Context, boardID, name, color string) (Label, error) {
	var label Label
	q := url.Values{"name": {name}, "idBoard": {boardID}, "color": {color}}
	if err := c.do(ctx, http.MethodPost, "/labels", q, nil, &label); err != nil {
		return Label{}, fmt.Errorf("create label %q: %w", name, err)
	}
	return label, nil
}

// BoardCards returns the open cards on a board.
func (c *Client) BoardCards(ctx context.Context, boardID string) ([]Card, error) {
	var cards []Card
	q := url.Values{"filter": {"open"}}
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/cards", q, nil, &cards); err != nil {
		return nil, fmt.Errorf("fetch board cards: %w", err)
	}
	return cards, nil
}

// CreateCard creates a card in the given list.
func (c *Client) CreateCard(ctx context.Context, in CardInput) (Card, error) {
	var card Card
	if err := c.do(ctx, http.MethodPost, "/cards", nil, in, &card); err != nil {
		return Card{}, fmt.Errorf("create card %q: %w", in.Name, err)
	}
	return card, nil
}

// UpdateCard applies the non-nil fields of upd to a card.
func (c *Client) UpdateCard(ctx context.Context, cardID string, upd CardUpdate) (Card, error) {
	var card Card
	if err := c.do(ctx, http.MethodPut, "/cards/"+cardID, nil, upd, &card); err != nil {
		return Card{}, fmt.Errorf("update card %s: %w", cardID, err)
	}
	return card, nil
}

// MoveCard places a card into another list.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string) error {
	body := map[string]string{"idList": listID}
	if err := c.do(ctx, http.MethodPut, "/cards/"+cardID, nil, body, nil); err != nil {
		return fmt.Errorf("move card %s: %w", cardID, err)
	}
	return nil
}

// ArchiveCard closes a card. Only ever invoked by explicit maintenance; the
// sync passes never archive.
func (c *Client) ArchiveCard(ctx context.Context, cardID string) error {
	body := map[string]bool{"closed": true}
	if err := c.do(ctx, http.MethodPut, "/cards/"+cardID, nil, body, nil); err != nil {
		return fmt.Errorf("archive card %s: %w", cardID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.key)
	query.Set("token", c.token)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trello API error (status %d): %s", resp.StatusCode, string(respBytes))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
