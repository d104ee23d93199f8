package gh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProjectItem is a raw item from a projects-v2 board.
type ProjectItem struct {
	ID     string // project item node id
	Type   string // ISSUE, PULL_REQUEST, DRAFT_ISSUE
	Status string // single-select Status field value, verbatim
	Title  string
	URL    string
	Number int
	Repo   string // owner/name
	Body   string
	State  string // OPEN, CLOSED, MERGED
}

// ReviewRequest is a PR on which the current user's review was requested.
type ReviewRequest struct {
	Title  string
	URL    string
	Repo   string
	Number int
}

// Review is one review on a pull request.
type Review struct {
	Author string
	State  string // APPROVED, CHANGES_REQUESTED, COMMENTED, ...
}

// PullRequest carries the PR details the linked-PR decision table needs.
type PullRequest struct {
	URL            string
	Number         int
	Repo           string
	Author         string
	Body           string
	Title          string
	Merged         bool
	Mergeable      bool
	ReviewRequests int // count of still-open review requests
	Reviews        []Review
}

// Client talks to the GitHub GraphQL API, on github.com or an enterprise host.
type Client struct {
	httpClient *http.Client
	token      string
	host       string
	endpoint   string

	viewer string // cached login

	// per-project Status field cache: field id + option name → option id
	statusField   string
	statusOptions map[string]string
	statusProject string
}

// NewClient creates a client for the given host ("github.com" or a GHE host).
func NewClient(host, token string) *Client {
	endpoint := "https://api.github.com/graphql"
	if host != "github.com" {
		endpoint = "https://" + host + "/api/graphql"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		host:       host,
		endpoint:   endpoint,
	}
}

// Host returns the configured GitHub host.
func (c *Client) Host() string {
	return c.host
}

// Viewer returns the authenticated user's login, cached after the first call.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	if c.viewer != "" {
		return c.viewer, nil
	}
	var resp struct {
		Viewer struct {
			Login string `json:"login"`
		} `json:"viewer"`
	}
	if err := c.graphql(ctx, `query { viewer { login } }`, nil, &resp); err != nil {
		return "", fmt.Errorf("fetch viewer: %w", err)
	}
	c.viewer = resp.Viewer.Login
	return c.viewer, nil
}

const projectItemsQuery = `
query($projectId: ID!, $cursor: String) {
  node(id: $projectId) {
    ... on ProjectV2 {
      items(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          fieldValueByName(name: "Status") {
            ... on ProjectV2ItemFieldSingleSelectValue { name }
          }
          content {
            __typename
            ... on Issue {
              title url number body state
              repository { nameWithOwner }
            }
            ... on PullRequest {
              title url number body state
              repository { nameWithOwner }
            }
            ... on DraftIssue { title body }
          }
        }
      }
    }
  }
}`

// ProjectItems lists every item on a projects-v2 board, following pagination.
func (c *Client) ProjectItems(ctx context.Context, projectID string) ([]ProjectItem, error) {
	var items []ProjectItem
	cursor := ""
	for {
		vars := map[string]any{"projectId": projectID}
		if cursor != "" {
			vars["cursor"] = cursor
		}
		var resp struct {
			Node struct {
				Items struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID               string `json:"id"`
						FieldValueByName struct {
							Name string `json:"name"`
						} `json:"fieldValueByName"`
						Content struct {
							Typename   string `json:"__typename"`
							Title      string `json:"title"`
							URL        string `json:"url"`
							Number     int    `json:"number"`
							Body       string `json:"body"`
							State      string `json:"state"`
							Repository struct {
								NameWithOwner string `json:"nameWithOwner"`
							} `json:"repository"`
						} `json:"content"`
					} `json:"nodes"`
				} `json:"items"`
			} `json:"node"`
		}
		if err := c.graphql(ctx, projectItemsQuery, vars, &resp); err != nil {
			return nil, fmt.Errorf("fetch project items: %w", err)
		}
		for _, n := range resp.Node.Items.Nodes {
			items = append(items, ProjectItem{
				ID:     n.ID,
				Type:   n.Content.Typename,
				Status: n.FieldValueByName.Name,
				Title:  n.Content.Title,
				URL:    n.Content.URL,
				Number: n.Content.Number,
				Repo:   n.Content.Repository.NameWithOwner,
				Body:   n.Content.Body,
				State:  n.Content.State,
			})
		}
		if !resp.Node.Items.PageInfo.HasNextPage {
			break
		}
		cursor = resp.Node.Items.PageInfo.EndCursor
	}
	return items, nil
}

const searchPRsQuery = `
query($query: String!) {
  search(query: $query, type: ISSUE, first: 50) {
    nodes {
      ... on PullRequest {
        title url number
        repository { nameWithOwner }
      }
    }
  }
}`

// ReviewRequested lists open PRs awaiting the current user's review.
func (c *Client) ReviewRequested(ctx context.Context) ([]ReviewRequest, error) {
	nodes, err := c.searchPRs(ctx, "is:open is:pr review-requested:@me archived:false")
	if err != nil {
		return nil, fmt.Errorf("fetch review requests: %w", err)
	}
	return nodes, nil
}

// AuthoredOpenPRs returns the urls of the current user's open pull requests.
func (c *Client) AuthoredOpenPRs(ctx context.Context) ([]string, error) {
	nodes, err := c.searchPRs(ctx, "is:open is:pr author:@me archived:false")
	if err != nil {
		return nil, fmt.Errorf("fetch authored PRs: %w", err)
	}
	urls := make([]string, 0, len(nodes))
	for _, n := range nodes {
		urls = append(urls, n.URL)
	}
	return urls, nil
}

func (c *Client) searchPRs(ctx context.Context, query string) ([]ReviewRequest, error) {
	var resp struct {
		Search struct {
			Nodes []struct {
				Title      string `json:"title"`
				URL        string `json:"url"`
				Number     int    `json:"number"`
				Repository struct {
					NameWithOwner string `json:"nameWithOwner"`
				} `json:"repository"`
			} `json:"nodes"`
		} `json:"search"`
	}
	if err := c.graphql(ctx, searchPRsQuery, map[string]any{"query": query}, &resp); err != nil {
		return nil, err
	}
	var out []ReviewRequest
	for _, n := range resp.Search.Nodes {
		if n.URL == "" {
			continue
		}
		out = append(out, ReviewRequest{Title: n.Title, URL: n.URL, Repo: n.Repository.NameWithOwner, Number: n.Number})
	}
	return out, nil
}

const pullRequestQuery = `
query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      title url number body merged mergeable
      author { login }
      reviewRequests { totalCount }
      reviews(first: 50) {
        nodes { state author { login } }
      }
    }
  }
}`

// PullRequestDetails fetches the review state of one PR by url.
func (c *Client) PullRequestDetails(ctx context.Context, prURL string) (*PullRequest, error) {
	repo, number, err := ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}
	owner, name, ok := splitRepo(repo)
	if !ok {
		return nil, fmt.Errorf("malformed repo %q in %s", repo, prURL)
	}
	var resp struct {
		Repository struct {
			PullRequest struct {
				Title     string `json:"title"`
				URL       string `json:"url"`
				Number    int    `json:"number"`
				Body      string `json:"body"`
				Merged    bool   `json:"merged"`
				Mergeable string `json:"mergeable"`
				Author    struct {
					Login string `json:"login"`
				} `json:"author"`
				ReviewRequests struct {
					TotalCount int `json:"totalCount"`
				} `json:"reviewRequests"`
				Reviews struct {
					Nodes []struct {
						State  string `json:"state"`
						Author struct {
							Login string `json:"login"`
						} `json:"author"`
					} `json:"nodes"`
				} `json:"reviews"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}
	vars := map[string]any{"owner": owner, "name": name, "number": number}
	if err := c.graphql(ctx, pullRequestQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("fetch PR %s: %w", prURL, err)
	}
	pr := resp.Repository.PullRequest
	out := &PullRequest{
		URL:            pr.URL,
		Number:         pr.Number,
		Repo:           repo,
		Author:         pr.Author.Login,
		Body:           pr.Body,
		Title:          pr.Title,
		Merged:         pr.Merged,
		Mergeable:      pr.Mergeable == "MERGEABLE",
		ReviewRequests: pr.ReviewRequests.TotalCount,
	}
	for _, r := range pr.Reviews.Nodes {
		out.Reviews = append(out.Reviews, Review{Author: r.Author.Login, State: r.State})
	}
	if out.URL == "" {
		out.URL = prURL
	}
	return out, nil
}

const statusFieldQuery = `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      field(name: "Status") {
        ... on ProjectV2SingleSelectField {
          id
          options { id name }
        }
      }
    }
  }
}`

const updateStatusMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId, itemId: $itemId, fieldId: $fieldId,
    value: { singleSelectOptionId: $optionId }
  }) { projectV2Item { id } }
}`

// UpdateProjectItemStatus sets the single-select Status field of a project
// item to the option matching statusName.
func (c *Client) UpdateProjectItemStatus(ctx context.Context, projectID, itemID, statusName string) error {
	if err := c.loadStatusField(ctx, projectID); err != nil {
		return err
	}
	optionID, ok := c.statusOptions[statusName]
	if !ok {
		return fmt.Errorf("project has no status option %q", statusName)
	}
	vars := map[string]any{
		"projectId": projectID,
		"itemId":    itemID,
		"fieldId":   c.statusField,
		"optionId":  optionID,
	}
	if err := c.graphql(ctx, updateStatusMutation, vars, &struct{}{}); err != nil {
		return fmt.Errorf("update status of item %s: %w", itemID, err)
	}
	return nil
}

func (c *Client) loadStatusField(ctx context.Context, projectID string) error {
	if c.statusProject == projectID && c.statusField != "" {
		return nil
	}
	var resp struct {
		Node struct {
			Field struct {
				ID      string `json:"id"`
				Options []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"options"`
			} `json:"field"`
		} `json:"node"`
	}
	if err := c.graphql(ctx, statusFieldQuery, map[string]any{"projectId": projectID}, &resp); err != nil {
		return fmt.Errorf("fetch status field: %w", err)
	}
	if resp.Node.Field.ID == "" {
		return fmt.Errorf("project %s has no single-select Status field", projectID)
	}
	c.statusField = resp.Node.Field.ID
	c.statusOptions = make(map[string]string, len(resp.Node.Field.Options))
	for _, opt := range resp.Node.Field.Options {
		c.statusOptions[opt.Name] = opt.ID
	}
	c.statusProject = projectID
	return nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	bodyBytes, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

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
		return fmt.Errorf("github API error (status %d): %s", resp.StatusCode, string(respBytes))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("github API error: %s", envelope.Errors[0].Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}
