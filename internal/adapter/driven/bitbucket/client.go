// Package bitbucket implements the HostClient port against the Bitbucket
// Cloud 2.0 REST API.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"prdigest/internal/domain/model"
	"prdigest/internal/domain/port/driven"
)

const (
	defaultBaseURL = "https://api.bitbucket.org/2.0"

	// pageLen is requested per page; Bitbucket caps pagelen at 50 for the
	// pull request endpoint.
	pageLen = 50
)

// Compile-time interface satisfaction check.
var _ driven.HostClient = (*Client)(nil)

// Credentials selects the authentication scheme for the Bitbucket API.
// Token takes precedence when both schemes are supplied.
type Credentials struct {
	// Token is a workspace or repository access token sent as a bearer
	// credential.
	Token string

	// Username and AppPassword form the basic-auth pair.
	Username    string
	AppPassword string
}

// Client implements the driven.HostClient port against Bitbucket Cloud.
type Client struct {
	httpClient *http.Client
	baseURL    string
	workspace  string
	creds      Credentials
}

// NewClient creates a Bitbucket Cloud API client for the given workspace.
// Repository identifiers passed to FetchOpenPullRequests are slugs within
// that workspace.
func NewClient(workspace string, creds Credentials, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		workspace:  workspace,
		creds:      creds,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, workspace string, creds Credentials) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		workspace:  workspace,
		creds:      creds,
	}
}

// pullRequestsPage mirrors the paginated envelope Bitbucket wraps around
// list responses.
type pullRequestsPage struct {
	Values []pullRequestRecord `json:"values"`
	Next   string              `json:"next"`
}

type pullRequestRecord struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
	CreatedOn    time.Time  `json:"created_on"`
	MergedOn     *time.Time `json:"merged_on"`
	Source       branchRef  `json:"source"`
	Destination  branchRef  `json:"destination"`
	CommentCount int        `json:"comment_count"`
	Author       struct {
		Nickname string `json:"nickname"`
	} `json:"author"`
	Draft bool `json:"draft"`
}

type branchRef struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
}

// FetchOpenPullRequests returns one page of open pull requests for the given
// repository slug. cursor is the continuation URL from the previous page;
// when empty the first page is requested with a fixed state=OPEN filter.
func (c *Client) FetchOpenPullRequests(ctx context.Context, repo string, cursor string) (model.PullRequestPage, error) {
	reqURL := cursor
	if reqURL == "" {
		reqURL = c.firstPageURL(repo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.PullRequestPage{}, fmt.Errorf("building request for %s: %w", repo, err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.PullRequestPage{}, fmt.Errorf("listing pull requests for %s: %w", repo, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.PullRequestPage{}, fmt.Errorf("listing pull requests for %s: unexpected status %s", repo, resp.Status)
	}

	var page pullRequestsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return model.PullRequestPage{}, fmt.Errorf("decoding pull request page for %s: %w", repo, err)
	}

	now := time.Now()
	result := model.PullRequestPage{
		PullRequests: make([]model.PullRequestSummary, 0, len(page.Values)),
		NextCursor:   page.Next,
	}
	for _, rec := range page.Values {
		result.PullRequests = append(result.PullRequests, mapPullRequest(rec, now))
	}

	slog.Debug("bitbucket api call",
		"repo", repo,
		"count", len(page.Values),
		"has_next", page.Next != "",
	)

	return result, nil
}

// firstPageURL builds the initial list URL for a repository slug. Follow-up
// pages come from the envelope's next field and are used verbatim.
func (c *Client) firstPageURL(repo string) string {
	return fmt.Sprintf("%s/repositories/%s/%s/pullrequests?state=OPEN&pagelen=%d",
		c.baseURL, url.PathEscape(c.workspace), url.PathEscape(repo), pageLen)
}

func (c *Client) authorize(req *http.Request) {
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		return
	}
	req.SetBasicAuth(c.creds.Username, c.creds.AppPassword)
}

// mapPullRequest converts a Bitbucket pull request record to a domain model
// summary. Field values are taken as reported; only the age is derived.
func mapPullRequest(rec pullRequestRecord, now time.Time) model.PullRequestSummary {
	var merged time.Time
	if rec.MergedOn != nil {
		merged = *rec.MergedOn
	}

	return model.PullRequestSummary{
		ID:                fmt.Sprintf("#%d", rec.ID),
		Title:             rec.Title,
		Link:              rec.Links.HTML.Href,
		AgeDays:           model.AgeInDays(rec.CreatedOn, now),
		CreatedAt:         rec.CreatedOn,
		MergedAt:          merged,
		SourceBranch:      rec.Source.Branch.Name,
		DestinationBranch: rec.Destination.Branch.Name,
		CommentCount:      rec.CommentCount,
		Author:            rec.Author.Nickname,
		IsDraft:           rec.Draft,
	}
}
