package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/http/middlewares"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"github.com/geocoder89/conventionhub/internal/webinar"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// TaskAccepted acknowledges a task-producing request; the outcome is
// polled at GET /tasks/:id.
type TaskAccepted struct {
	TaskID string      `json:"taskId"`
	Kind   task.Kind   `json:"kind"`
	Status task.Status `json:"status"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondAccepted(ctx *gin.Context, t task.Task) {
	ctx.Set(middlewares.CtxTaskID, t.ID)
	ctx.Header("Location", "/tasks/"+t.ID)
	ctx.JSON(http.StatusAccepted, TaskAccepted{TaskID: t.ID, Kind: t.Kind, Status: t.Status})
}

// respondServiceError maps service errors to the API envelope. Anything
// unrecognised is logged and answered with fallback as a 500.
func respondServiceError(ctx *gin.Context, log *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, convention.ErrNotFound):
		RespondNotFound(ctx, "Webinar not found")
	case errors.Is(err, participation.ErrNotFound):
		RespondError(ctx, http.StatusNotFound, "not_participant", "User is not a participant of this webinar", nil)
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, task.ErrNotFound):
		RespondNotFound(ctx, "Task not found")
	case errors.Is(err, task.ErrAlreadyExists):
		RespondConflict(ctx, "task_exists", "Task already exists")
	case errors.Is(err, webinar.ErrNoVisitors):
		RespondConflict(ctx, "no_visitors", "No visitor statistics to export yet")
	case errors.Is(err, tasks.ErrInvalidPayload),
		errors.Is(err, tasks.ErrInvalidKind),
		errors.Is(err, tasks.ErrPayloadTypeMismatch):
		RespondError(ctx, http.StatusUnprocessableEntity, "invalid_payload", err.Error(), nil)
	default:
		log.ErrorContext(ctx.Request.Context(), "http.unhandled_error",
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
		RespondInternal(ctx, fallback)
	}
}
