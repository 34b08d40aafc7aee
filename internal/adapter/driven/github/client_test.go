package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "prdigest/internal/adapter/driven/github"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", "acme")
	require.NoError(t, err)

	return client, server
}

// prJSON is a helper struct for building GitHub API pull request responses.
type prJSON struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	State    string   `json:"state"`
	Draft    bool     `json:"draft"`
	HTMLURL  string   `json:"html_url"`
	User     userJSON `json:"user"`
	Head     refJSON  `json:"head"`
	Base     refJSON  `json:"base"`
	Comments int      `json:"comments"`
	Created  string   `json:"created_at"`
	MergedAt *string  `json:"merged_at,omitempty"`
}

type userJSON struct {
	Login string `json:"login"`
}

type refJSON struct {
	Ref string `json:"ref"`
}

func TestFetchOpenPullRequests_SinglePage(t *testing.T) {
	prs := []prJSON{
		{
			Number:   42,
			Title:    "Add feature X",
			State:    "open",
			HTMLURL:  "https://github.com/acme/repo/pull/42",
			User:     userJSON{Login: "alice"},
			Head:     refJSON{Ref: "feature-x"},
			Base:     refJSON{Ref: "main"},
			Comments: 5,
			Created:  "2026-01-01T00:00:00Z",
		},
		{
			Number:  43,
			Title:   "Sketch bug fix",
			State:   "open",
			Draft:   true,
			HTMLURL: "https://github.com/acme/repo/pull/43",
			User:    userJSON{Login: "bob"},
			Head:    refJSON{Ref: "fix-bug-y"},
			Base:    refJSON{Ref: "develop"},
			Created: "2026-01-03T00:00:00Z",
		},
	}

	var gotState string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("state")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(prs)
	})

	client, _ := newTestClient(t, handler)
	page, err := client.FetchOpenPullRequests(context.Background(), "acme/repo", "")

	require.NoError(t, err)
	assert.Equal(t, "open", gotState)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.PullRequests, 2)

	first := page.PullRequests[0]
	assert.Equal(t, "#42", first.ID)
	assert.Equal(t, "Add feature X", first.Title)
	assert.Equal(t, "https://github.com/acme/repo/pull/42", first.Link)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, "feature-x", first.SourceBranch)
	assert.Equal(t, "main", first.DestinationBranch)
	assert.Equal(t, 5, first.CommentCount)
	assert.False(t, first.IsDraft)
	assert.True(t, first.MergedAt.IsZero())
	assert.Greater(t, first.AgeDays, 0)

	second := page.PullRequests[1]
	assert.Equal(t, "#43", second.ID)
	assert.True(t, second.IsDraft)
	assert.Zero(t, second.CommentCount)
}

func TestFetchOpenPullRequests_PageCursor(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			_ = json.NewEncoder(w).Encode([]prJSON{
				{Number: 1, Title: "PR One", State: "open", User: userJSON{Login: "alice"}, Created: "2026-01-01T00:00:00Z"},
			})
		case "2":
			_ = json.NewEncoder(w).Encode([]prJSON{
				{Number: 2, Title: "PR Two", State: "open", User: userJSON{Login: "bob"}, Created: "2026-01-02T00:00:00Z"},
			})
		default:
			http.Error(w, "unexpected page", http.StatusBadRequest)
		}
	})

	client, _ := newTestClient(t, handler)

	first, err := client.FetchOpenPullRequests(context.Background(), "acme/repo", "")
	require.NoError(t, err)
	require.Len(t, first.PullRequests, 1)
	assert.Equal(t, "#1", first.PullRequests[0].ID)
	assert.Equal(t, "2", first.NextCursor)

	second, err := client.FetchOpenPullRequests(context.Background(), "acme/repo", first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.PullRequests, 1)
	assert.Equal(t, "#2", second.PullRequests[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestFetchOpenPullRequests_BareNameUsesDefaultOwner(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]prJSON{})
	})

	client, _ := newTestClient(t, handler)
	_, err := client.FetchOpenPullRequests(context.Background(), "billing", "")

	require.NoError(t, err)
	assert.Equal(t, "/repos/acme/billing/pulls", gotPath)
}

func TestFetchOpenPullRequests_InvalidRepoName(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.FetchOpenPullRequests(context.Background(), "/billing", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repo name")
}

func TestFetchOpenPullRequests_InvalidCursor(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.FetchOpenPullRequests(context.Background(), "acme/repo", "not-a-page")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page cursor")
}

func TestFetchOpenPullRequests_APIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.FetchOpenPullRequests(context.Background(), "acme/missing", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing pull requests for acme/missing")
}
