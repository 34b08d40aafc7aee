package driven

import (
	"context"

	"prdigest/internal/domain/model"
)

// HostClient defines the driven port for reading open pull requests from a
// source code host.
type HostClient interface {
	// FetchOpenPullRequests returns one page of open pull requests for the
	// repository identifier as it appears in configuration. cursor is the
	// NextCursor from the previous page, or empty for the first page; its
	// format is private to the implementation (a continuation URL for
	// Bitbucket, a page number for GitHub).
	FetchOpenPullRequests(ctx context.Context, repo string, cursor string) (model.PullRequestPage, error)
}
