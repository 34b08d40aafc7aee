// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"prdigest/internal/domain/model"
	"prdigest/internal/domain/port/driven"
	"prdigest/internal/format"
)

// ErrRunInProgress is returned when a digest run is requested while a
// previous run has not finished.
var ErrRunInProgress = errors.New("digest run already in progress")

// RunStatus is a snapshot of the most recent digest run.
type RunStatus struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	Repositories int
	PullRequests int
	FetchErrors  int
	Notified     bool
	Err          string // Terminal failure of the run, empty on success.
}

// DigestService orchestrates one digest run: fetch open pull requests for
// every configured repository, render the message, deliver it. Runs are
// serialized; a trigger that arrives while a run is in flight is rejected
// with ErrRunInProgress rather than queued.
type DigestService struct {
	host     driven.HostClient
	notifier driven.Notifier
	repos    []string

	running atomic.Bool

	mu   sync.RWMutex
	last RunStatus
}

// NewDigestService creates a DigestService for the configured repositories.
// The slice order is the order repositories appear in the digest.
func NewDigestService(host driven.HostClient, notifier driven.Notifier, repos []string) *DigestService {
	return &DigestService{
		host:     host,
		notifier: notifier,
		repos:    repos,
	}
}

// Run executes one digest cycle. Repository fetch failures are absorbed into
// the result; the returned error reflects delivery failure or cancellation.
func (s *DigestService) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer s.running.Store(false)

	runID := uuid.NewString()
	logger := slog.With("run_id", runID)
	start := time.Now()

	logger.Info("digest run started", "repos", len(s.repos))

	result := s.aggregate(ctx, logger)

	if err := ctx.Err(); err != nil {
		logger.Warn("digest run cancelled before delivery", "error", err)
		s.record(runID, start, result, false, err)
		return err
	}

	body := format.Digest(result)

	if err := s.notifier.Notify(ctx, body); err != nil {
		logger.Error("digest delivery failed", "error", err)
		s.record(runID, start, result, false, err)
		return err
	}

	logger.Info("digest run complete",
		"repos", len(result),
		"pull_requests", result.TotalPullRequests(),
		"fetch_errors", result.FailedRepositories(),
		"empty", result.Empty(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	s.record(runID, start, result, true, nil)
	return nil
}

// aggregate fetches open pull requests for every configured repository, in
// configuration order. Failures stay scoped to one repository: pagination
// for it is abandoned, pages already fetched are kept, and the loop moves on
// to the next repository.
func (s *DigestService) aggregate(ctx context.Context, logger *slog.Logger) model.RunResult {
	result := make(model.RunResult, 0, len(s.repos))

	for _, repo := range s.repos {
		digest := model.RepositoryDigest{RepositoryName: repo}

		if err := ctx.Err(); err != nil {
			digest.FetchErr = err
			result = append(result, digest)
			continue
		}

		cursor := ""
		pages := 0
		for {
			page, err := s.host.FetchOpenPullRequests(ctx, repo, cursor)
			if err != nil {
				logger.Error("repo fetch failed", "repo", repo, "page", pages+1, "error", err)
				digest.FetchErr = err
				break
			}

			pages++
			for _, pr := range page.PullRequests {
				if pr.IsDraft {
					continue
				}
				digest.PullRequests = append(digest.PullRequests, pr)
			}

			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}

		logger.Debug("repo aggregated",
			"repo", repo,
			"pages", pages,
			"pull_requests", len(digest.PullRequests),
			"failed", digest.FetchErr != nil,
		)

		result = append(result, digest)
	}

	return result
}

// Running reports whether a digest run is currently in flight.
func (s *DigestService) Running() bool {
	return s.running.Load()
}

// Status returns a snapshot of the most recent completed run. The zero
// RunStatus is returned before the first run finishes.
func (s *DigestService) Status() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *DigestService) record(runID string, start time.Time, result model.RunResult, notified bool, err error) {
	status := RunStatus{
		RunID:        runID,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		Repositories: len(result),
		PullRequests: result.TotalPullRequests(),
		FetchErrors:  result.FailedRepositories(),
		Notified:     notified,
	}
	status.Duration = status.FinishedAt.Sub(start)
	if err != nil {
		status.Err = err.Error()
	}

	s.mu.Lock()
	s.last = status
	s.mu.Unlock()
}
