package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "prdigest/internal/adapter/driving/http"
	"prdigest/internal/application"
	"prdigest/internal/domain/model"
)

// --- Mock implementations ---

type mockHostClient struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context, repo, cursor string) (model.PullRequestPage, error)
}

func (m *mockHostClient) FetchOpenPullRequests(ctx context.Context, repo, cursor string) (model.PullRequestPage, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetch == nil {
		return model.PullRequestPage{}, nil
	}
	return m.fetch(ctx, repo, cursor)
}

type mockNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (m *mockNotifier) Notify(_ context.Context, body string) error {
	m.mu.Lock()
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bodies)
}

// --- Test helpers ---

func setupMux(svc *application.DigestService, sched *application.Scheduler) http.Handler {
	h := httphandler.NewHandler(svc, sched, slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

func newService(host *mockHostClient, notifier *mockNotifier) *application.DigestService {
	return application.NewDigestService(host, notifier, []string{"alpha"})
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux := setupMux(newService(&mockHostClient{}, &mockNotifier{}), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)

	assert.Equal(t, "UP", resp["status"])

	parsed, err := time.Parse(time.RFC3339, resp["timestamp"])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestStatusBeforeFirstRun(t *testing.T) {
	mux := setupMux(newService(&mockHostClient{}, &mockNotifier{}), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeJSON(t, rec, &resp)

	assert.Equal(t, false, resp["running"])
	assert.Nil(t, resp["last_run"])
	assert.NotContains(t, resp, "next_run")
}

func TestStatusAfterRun(t *testing.T) {
	host := &mockHostClient{
		fetch: func(_ context.Context, _, _ string) (model.PullRequestPage, error) {
			return model.PullRequestPage{PullRequests: []model.PullRequestSummary{
				{ID: "#1", Title: "One", Link: "https://example.com/pr/1"},
			}}, nil
		},
	}
	svc := newService(host, &mockNotifier{})
	require.NoError(t, svc.Run(context.Background()))

	mux := setupMux(svc, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Running bool `json:"running"`
		LastRun *struct {
			RunID        string `json:"run_id"`
			StartedAt    string `json:"started_at"`
			Repositories int    `json:"repositories"`
			PullRequests int    `json:"pull_requests"`
			FetchErrors  int    `json:"fetch_errors"`
			Notified     bool   `json:"notified"`
		} `json:"last_run"`
	}
	decodeJSON(t, rec, &resp)

	assert.False(t, resp.Running)
	require.NotNil(t, resp.LastRun)
	assert.NotEmpty(t, resp.LastRun.RunID)
	assert.Equal(t, 1, resp.LastRun.Repositories)
	assert.Equal(t, 1, resp.LastRun.PullRequests)
	assert.Zero(t, resp.LastRun.FetchErrors)
	assert.True(t, resp.LastRun.Notified)

	_, err := time.Parse(time.RFC3339, resp.LastRun.StartedAt)
	assert.NoError(t, err)
}

func TestStatusIncludesNextRun(t *testing.T) {
	svc := newService(&mockHostClient{}, &mockNotifier{})
	sched, err := application.NewScheduler("@every 1h", svc)
	require.NoError(t, err)

	sched.Start()
	t.Cleanup(func() { sched.Stop(context.Background()) })

	mux := setupMux(svc, sched)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeJSON(t, rec, &resp)

	nextRun, ok := resp["next_run"].(string)
	require.True(t, ok, "next_run missing from response")

	parsed, err := time.Parse(time.RFC3339, nextRun)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), parsed, time.Minute)
}

func TestTriggerRun(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newService(&mockHostClient{}, notifier)
	mux := setupMux(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/run", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "started", resp["status"])

	// The run executes in the background; wait for the delivery.
	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTriggerRunConflict(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	host := &mockHostClient{
		fetch: func(_ context.Context, _, _ string) (model.PullRequestPage, error) {
			close(entered)
			<-release
			return model.PullRequestPage{}, nil
		},
	}
	svc := newService(host, &mockNotifier{})
	mux := setupMux(svc, nil)

	runDone := make(chan error, 1)
	go func() { runDone <- svc.Run(context.Background()) }()
	<-entered

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/run", nil))

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp["error"], "already in progress")

	close(release)
	require.NoError(t, <-runDone)
}

func TestTriggerRunRejectsGet(t *testing.T) {
	mux := setupMux(newService(&mockHostClient{}, &mockNotifier{}), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/run", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	mux := setupMux(newService(&mockHostClient{}, &mockNotifier{}), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/digests", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
