package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"prdigest/internal/application"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse reports whether a run is in flight, the last completed run,
// and the next scheduled run time.
type StatusResponse struct {
	Running bool         `json:"running"`
	LastRun *RunResponse `json:"last_run"`
	NextRun string       `json:"next_run,omitempty"`
}

// RunResponse is the JSON representation of one completed digest run.
type RunResponse struct {
	RunID        string `json:"run_id"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	DurationMS   int64  `json:"duration_ms"`
	Repositories int    `json:"repositories"`
	PullRequests int    `json:"pull_requests"`
	FetchErrors  int    `json:"fetch_errors"`
	Notified     bool   `json:"notified"`
	Error        string `json:"error,omitempty"`
}

// TriggerResponse is the JSON body returned when a manual run is accepted.
type TriggerResponse struct {
	Status string `json:"status"`
}

// toRunResponse converts an application RunStatus to its JSON representation.
func toRunResponse(status application.RunStatus) RunResponse {
	return RunResponse{
		RunID:        status.RunID,
		StartedAt:    status.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:   status.FinishedAt.UTC().Format(time.RFC3339),
		DurationMS:   status.Duration.Milliseconds(),
		Repositories: status.Repositories,
		PullRequests: status.PullRequests,
		FetchErrors:  status.FetchErrors,
		Notified:     status.Notified,
		Error:        status.Err,
	}
}
