package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/fightlens/internal/scheduler"
)

// TaskRunner runs a registered task immediately.
type TaskRunner interface {
	RunNow(ctx context.Context, name string) error
}

// TasksHandler triggers scheduled passes on demand.
type TasksHandler struct {
	runner TaskRunner
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(runner TaskRunner) *TasksHandler {
	return &TasksHandler{runner: runner}
}

type runResponse struct {
	Task   string `json:"task"`
	Status string `json:"status"`
}

// HandleRun handles POST /tasks/{name}/run. The pass runs synchronously.
func (h *TasksHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := h.runner.RunNow(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, runResponse{Task: name, Status: "completed"})
	case errors.Is(err, scheduler.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "unknown_task", err)
	case errors.Is(err, scheduler.ErrTaskRunning):
		writeError(w, http.StatusConflict, "task_running", err)
	default:
		writeError(w, http.StatusInternalServerError, "task_failed", err)
	}
}
