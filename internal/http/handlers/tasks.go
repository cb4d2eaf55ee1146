package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskReader interface {
	GetByID(ctx context.Context, id string) (task.Task, error)
}

type TasksHandler struct {
	tasks TaskReader
	log   *slog.Logger
}

func NewTasksHandler(tasks TaskReader, log *slog.Logger) *TasksHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TasksHandler{tasks: tasks, log: log}
}

// GET /tasks/:id is visible to admins and to the caller who requested it.
// Other callers get 404 so foreign task ids are indistinguishable from unknown ones.
func (h *TasksHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		RespondBadRequest(ctx, "Invalid path parameters", gin.H{"fields": []FieldError{{
			Field: "id", Rule: "uuid", Message: "must be a valid UUID",
		}}})
		return
	}
	ctx.Set(middlewares.CtxTaskID, id)

	t, err := h.tasks.GetByID(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load task")
		return
	}

	if !middlewares.IsAdmin(ctx) {
		actor := middlewares.ActorFromContext(ctx)
		if actor == nil || t.ActorID == nil || *t.ActorID != *actor {
			RespondNotFound(ctx, "Task not found")
			return
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}
