package model

import "time"

// PullRequestSummary is the normalized view of one open pull request as
// reported by the source code host. Summaries are rebuilt from scratch on
// every digest run and never persisted.
type PullRequestSummary struct {
	ID                string // Host-assigned identifier with a "#" prefix, e.g. "#42".
	Title             string
	Link              string // Browser URL of the pull request page.
	AgeDays           int
	CreatedAt         time.Time
	MergedAt          time.Time // Zero while the pull request is unmerged.
	SourceBranch      string
	DestinationBranch string
	CommentCount      int
	Author            string
	IsDraft           bool
}

// AgeInDays returns the whole days elapsed between created and now,
// truncated toward zero. Values are taken as reported by the host;
// a future created timestamp yields a negative age.
func AgeInDays(created, now time.Time) int {
	return int(now.Sub(created).Hours() / 24)
}

// PullRequestPage is one page of summaries returned by a host client.
type PullRequestPage struct {
	PullRequests []PullRequestSummary

	// NextCursor is the opaque continuation reference for the following
	// page. Empty means this page was the last one.
	NextCursor string
}
