package model

// RepositoryDigest collects the open, non-draft pull requests fetched for a
// single configured repository during one digest run.
type RepositoryDigest struct {
	// RepositoryName is the identifier exactly as configured.
	RepositoryName string
	PullRequests   []PullRequestSummary

	// FetchErr is non-nil when fetching this repository was abandoned
	// partway. PullRequests then holds whatever complete pages arrived
	// before the failure.
	FetchErr error
}

// HasPullRequests reports whether the digest holds at least one summary.
func (d RepositoryDigest) HasPullRequests() bool {
	return len(d.PullRequests) > 0
}

// RunResult is the outcome of one digest run: exactly one digest per
// configured repository, in configuration order.
type RunResult []RepositoryDigest

// Empty reports whether no repository in the result produced any pull
// requests.
func (r RunResult) Empty() bool {
	for _, d := range r {
		if d.HasPullRequests() {
			return false
		}
	}
	return true
}

// TotalPullRequests returns the summary count across all repositories.
func (r RunResult) TotalPullRequests() int {
	total := 0
	for _, d := range r {
		total += len(d.PullRequests)
	}
	return total
}

// FailedRepositories returns how many repositories ended with a fetch error.
func (r RunResult) FailedRepositories() int {
	failed := 0
	for _, d := range r {
		if d.FetchErr != nil {
			failed++
		}
	}
	return failed
}
