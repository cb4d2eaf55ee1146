package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/http/middlewares"
	"github.com/geocoder89/conventionhub/internal/webinar"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type StatisticsService interface {
	ListVisitors(ctx context.Context, webinarID int64) ([]participation.VisitorRow, error)
	RequestExport(ctx context.Context, actorID string, webinarID int64) (task.Task, error)
	Recalculate(ctx context.Context, webinarID int64) (int, error)
	RequestRecalculation(ctx context.Context, actorID *string, webinarID int64) (task.Task, error)
	WebinarStatus(ctx context.Context, webinarID int64) (json.RawMessage, error)
	IsFinished(ctx context.Context, webinarID int64) (bool, error)
	WebinarsBetween(ctx context.Context, from, to time.Time) ([]convention.Convention, error)
}

type RegistrationService interface {
	CreateRegistrationTask(ctx context.Context, actorID *string, userID, webinarID int64) (task.Task, error)
	State(ctx context.Context, webinarID, userID int64) (webinar.RegistrationState, error)
}

type WebinarsHandler struct {
	stats StatisticsService
	regs  RegistrationService
	log   *slog.Logger
	loc   *time.Location
}

func NewWebinarsHandler(stats StatisticsService, regs RegistrationService, log *slog.Logger, loc *time.Location) *WebinarsHandler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WebinarsHandler{stats: stats, regs: regs, log: log, loc: loc}
}

type webinarURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type listWebinarsQuery struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to" binding:"required,datetime=2006-01-02"`
}

type registerRequest struct {
	UserID int64 `json:"userId" binding:"omitempty,min=1"`
}

type recalculateQuery struct {
	Async bool `form:"async"`
}

type userQuery struct {
	UserID int64 `form:"userId" binding:"omitempty,min=1"`
}

func (h *WebinarsHandler) bindWebinar(ctx *gin.Context) (int64, bool) {
	var uri webinarURI
	if !BindURI(ctx, &uri) {
		return 0, false
	}
	ctx.Set(middlewares.CtxWebinarID, uri.ID)
	return uri.ID, true
}

// targetUser is the caller, or the user an admin acts for.
func (h *WebinarsHandler) targetUser(ctx *gin.Context, requested int64) (int64, bool) {
	self, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return 0, false
	}
	if requested == 0 || requested == self {
		return self, true
	}
	if !middlewares.IsAdmin(ctx) {
		RespondForbidden(ctx, "Only admins can act for other users")
		return 0, false
	}
	return requested, true
}

// GET /webinars?from=YYYY-MM-DD&to=YYYY-MM-DD (both days inclusive)
func (h *WebinarsHandler) List(ctx *gin.Context) {
	var q listWebinarsQuery
	if !BindQuery(ctx, &q) {
		return
	}

	from, _ := time.ParseInLocation(dateLayout, q.From, h.loc)
	to, _ := time.ParseInLocation(dateLayout, q.To, h.loc)
	if to.Before(from) {
		RespondBadRequest(ctx, "Invalid query parameters", gin.H{"fields": []FieldError{{
			Field: "to", Rule: "gtefield", Param: "from", Message: "must not be before from",
		}}})
		return
	}

	items, err := h.stats.WebinarsBetween(ctx.Request.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list webinars")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GET /webinars/:id/statistic
func (h *WebinarsHandler) Statistic(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	rows, err := h.stats.ListVisitors(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list visitors")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

// POST /webinars/:id/statistic-export
func (h *WebinarsHandler) Export(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	actor := middlewares.ActorFromContext(ctx)
	if actor == nil {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}

	t, err := h.stats.RequestExport(ctx.Request.Context(), *actor, id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not request export")
		return
	}
	RespondAccepted(ctx, t)
}

// POST /webinars/:id/statistic-recalculate[?async=true]
func (h *WebinarsHandler) Recalculate(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	var q recalculateQuery
	if !BindQuery(ctx, &q) {
		return
	}

	if q.Async {
		t, err := h.stats.RequestRecalculation(ctx.Request.Context(), middlewares.ActorFromContext(ctx), id)
		if err != nil {
			respondServiceError(ctx, h.log, err, "Could not request recalculation")
			return
		}
		RespondAccepted(ctx, t)
		return
	}

	matched, err := h.stats.Recalculate(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not recalculate statistic")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"matched": matched})
}

// POST /webinars/:id/register with an optional {"userId": n} for admins.
func (h *WebinarsHandler) Register(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	var req registerRequest
	if ctx.Request.ContentLength != 0 && !BindJSON(ctx, &req) {
		return
	}

	userID, ok := h.targetUser(ctx, req.UserID)
	if !ok {
		return
	}

	t, err := h.regs.CreateRegistrationTask(ctx.Request.Context(), middlewares.ActorFromContext(ctx), userID, id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not request registration")
		return
	}
	RespondAccepted(ctx, t)
}

// GET /webinars/:id/registration[?userId=n]
func (h *WebinarsHandler) Registration(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	var q userQuery
	if !BindQuery(ctx, &q) {
		return
	}

	userID, ok := h.targetUser(ctx, q.UserID)
	if !ok {
		return
	}

	st, err := h.regs.State(ctx.Request.Context(), id, userID)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load registration")
		return
	}
	if st.TaskID != nil {
		ctx.Set(middlewares.CtxTaskID, *st.TaskID)
	}
	RespondJSONWithETag(ctx, http.StatusOK, st)
}

// GET /webinars/:id/webinar-status returns the platform's session document
// or null.
func (h *WebinarsHandler) Status(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	raw, err := h.stats.WebinarStatus(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load webinar status")
		return
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	ctx.JSON(http.StatusOK, gin.H{"status": raw})
}

// GET /webinars/:id/finished
func (h *WebinarsHandler) Finished(ctx *gin.Context) {
	id, ok := h.bindWebinar(ctx)
	if !ok {
		return
	}

	finished, err := h.stats.IsFinished(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load webinar status")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"finished": finished})
}
