// Package github implements the HostClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"prdigest/internal/domain/model"
	"prdigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostClient = (*Client)(nil)

// Client implements the driven.HostClient port using the go-github library.
type Client struct {
	gh *gh.Client

	// owner completes bare repository identifiers; "owner/name" identifiers
	// carry their own owner and ignore it.
	owner string
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github (GitHub REST API client with PAT auth)
func NewClient(owner, token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	client := gh.NewClient(cacheTransport.Client()).WithAuthToken(token)

	return &Client{
		gh:    client,
		owner: owner,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, owner string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:    client,
		owner: owner,
	}, nil
}

// FetchOpenPullRequests retrieves one page of open pull requests for the
// given repository. cursor carries the page number produced by the previous
// call; empty requests the first page.
func (c *Client) FetchOpenPullRequests(ctx context.Context, repo string, cursor string) (model.PullRequestPage, error) {
	owner, name, err := c.splitRepo(repo)
	if err != nil {
		return model.PullRequestPage{}, err
	}

	page := 0
	if cursor != "" {
		page, err = strconv.Atoi(cursor)
		if err != nil {
			return model.PullRequestPage{}, fmt.Errorf("invalid page cursor %q for %s: %w", cursor, repo, err)
		}
	}

	opts := &gh.PullRequestListOptions{
		State: "open",
		ListOptions: gh.ListOptions{
			PerPage: 100,
			Page:    page,
		},
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return model.PullRequestPage{}, fmt.Errorf("listing pull requests for %s (page %d): %w", repo, page, err)
	}

	logRateLimit(resp, repo, page, len(prs))

	now := time.Now()
	result := model.PullRequestPage{
		PullRequests: make([]model.PullRequestSummary, 0, len(prs)),
	}
	for _, pr := range prs {
		result.PullRequests = append(result.PullRequests, mapPullRequest(pr, now))
	}
	if resp.NextPage != 0 {
		result.NextCursor = strconv.Itoa(resp.NextPage)
	}

	return result, nil
}

// mapPullRequest converts a go-github PullRequest to a domain model summary.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, now time.Time) model.PullRequestSummary {
	return model.PullRequestSummary{
		ID:                fmt.Sprintf("#%d", pr.GetNumber()),
		Title:             pr.GetTitle(),
		Link:              pr.GetHTMLURL(),
		AgeDays:           model.AgeInDays(pr.GetCreatedAt().Time, now),
		CreatedAt:         pr.GetCreatedAt().Time,
		MergedAt:          pr.GetMergedAt().Time,
		SourceBranch:      pr.GetHead().GetRef(),
		DestinationBranch: pr.GetBase().GetRef(),
		CommentCount:      pr.GetComments(),
		Author:            pr.GetUser().GetLogin(),
		IsDraft:           pr.GetDraft(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo resolves a configured identifier into owner and name. Bare names
// fall back to the client's default owner.
func (c *Client) splitRepo(repo string) (string, string, error) {
	if !strings.Contains(repo, "/") {
		if c.owner == "" {
			return "", "", fmt.Errorf("repo name %q has no owner and no default owner is configured", repo)
		}
		return c.owner, repo, nil
	}

	parts := strings.SplitN(repo, "/", 2)
	if parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}
