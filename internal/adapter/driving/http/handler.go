// Package httphandler is the HTTP driving adapter exposing the health probe
// and run-control endpoints.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"prdigest/internal/application"
)

// Handler serves the operational HTTP surface. The digest itself is never
// exposed over HTTP; it only travels through the notifier.
type Handler struct {
	digestSvc *application.DigestService
	scheduler *application.Scheduler // May be nil in single-run mode.
	logger    *slog.Logger
}

// NewHandler creates a Handler. scheduler may be nil when no schedule is
// active; the status endpoint then omits the next run time.
func NewHandler(digestSvc *application.DigestService, scheduler *application.Scheduler, logger *slog.Logger) *Handler {
	return &Handler{
		digestSvc: digestSvc,
		scheduler: scheduler,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /actuator/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("POST /api/v1/run", h.TriggerRun)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports process liveness. It always answers UP while the process
// serves traffic, independent of run outcomes.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Status returns the outcome of the most recent digest run plus the next
// scheduled run time.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running: h.digestSvc.Running(),
	}

	if last := h.digestSvc.Status(); !last.StartedAt.IsZero() {
		run := toRunResponse(last)
		resp.LastRun = &run
	}

	if h.scheduler != nil {
		if next := h.scheduler.NextRun(); !next.IsZero() {
			resp.NextRun = next.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun starts a digest run outside the schedule. The run executes in
// the background; a 409 is returned when one is already in flight.
func (h *Handler) TriggerRun(w http.ResponseWriter, _ *http.Request) {
	if h.digestSvc.Running() {
		writeError(w, http.StatusConflict, "a digest run is already in progress")
		return
	}

	go func() {
		err := h.digestSvc.Run(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, application.ErrRunInProgress):
			h.logger.Warn("manual digest run skipped", "error", err)
		default:
			h.logger.Error("manual digest run failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "started"})
}
