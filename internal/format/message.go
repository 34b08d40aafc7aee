// Package format renders run results into the plain-text chat message posted
// by the notifier.
package format

import (
	"fmt"
	"strings"

	"prdigest/internal/domain/model"
)

const (
	greeting = "Hello team! Here are the open pull requests waiting for review:"
	closing  = "Please take a moment to review them. Thank you!"

	// emptyMessage is posted when no configured repository has any open
	// pull request.
	emptyMessage = "There are no pending pull requests. Great job keeping the review queue empty!"
)

// Digest renders the message body for one run result. Repositories without
// pull requests are omitted; when every repository is empty the fixed
// all-clear message is returned instead of a listing.
func Digest(result model.RunResult) string {
	if result.Empty() {
		return emptyMessage
	}

	blocks := make([]string, 0, len(result))
	for _, digest := range result {
		if !digest.HasPullRequests() {
			continue
		}
		blocks = append(blocks, repositoryBlock(digest))
	}

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(closing)
	return b.String()
}

// repositoryBlock renders the header line plus one numbered line per pull
// request, in the order the host returned them.
func repositoryBlock(digest model.RepositoryDigest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s", digest.RepositoryName)
	for i, pr := range digest.PullRequests {
		b.WriteString("\n")
		b.WriteString(pullRequestLine(i+1, pr))
	}
	return b.String()
}

func pullRequestLine(index int, pr model.PullRequestSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s %s %s", index, pr.ID, pr.Title, pr.Link)
	if pr.AgeDays > 0 {
		fmt.Fprintf(&b, " (opened %s ago)", pluralDays(pr.AgeDays))
	}
	if pr.CommentCount > 0 {
		fmt.Fprintf(&b, " (Comments: %d)", pr.CommentCount)
	}
	return b.String()
}

func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
