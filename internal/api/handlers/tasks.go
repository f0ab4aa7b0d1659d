package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sparshcare/wellness-platform/internal/tasks"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

// TaskStore is the task persistence surface the handler needs.
type TaskStore interface {
	GetForStudent(ctx context.Context, studentID string) ([]tasks.Task, error)
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool) error
}

// TasksHandler exposes a student's wellness task list.
type TasksHandler struct {
	store  TaskStore
	logger *logging.Logger
}

// NewTasksHandler wires the task endpoints.
func NewTasksHandler(store TaskStore, logger *logging.Logger) *TasksHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TasksHandler{store: store, logger: logger}
}

// ListForStudent handles GET /api/students/{studentID}/tasks.
func (h *TasksHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "student id required")
		return
	}

	list, err := h.store.GetForStudent(r.Context(), studentID)
	if err != nil {
		h.logger.Error("task listing failed", "error", err, "student_id", studentID)
		respondError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

// SetCompletion handles POST /api/tasks/{taskID}/completion.
func (h *TasksHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var body struct {
		Completed bool `json:"completed"`
	}
	if !decodeBody(w, r, h.logger, &body) {
		return
	}

	if err := h.store.SetCompleted(r.Context(), taskID, body.Completed); err != nil {
		h.logger.Error("task completion update failed", "error", err, "task_id", taskID)
		respondError(w, http.StatusNotFound, "no task with that id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"completed": body.Completed})
}
