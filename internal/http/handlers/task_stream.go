package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/conventionhub/internal/http/middlewares"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingInterval = 50 * time.Second
)

type TaskStreamHandler struct {
	feed     tasks.StatusFeed
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewTaskStreamHandler accepts handshakes from allowedOrigins ("*" for any)
// and from clients that send no Origin at all.
func NewTaskStreamHandler(feed tasks.StatusFeed, log *slog.Logger, allowedOrigins []string) *TaskStreamHandler {
	if log == nil {
		log = slog.Default()
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &TaskStreamHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

type streamQuery struct {
	TaskID string `form:"taskId" binding:"omitempty,uuid"`
}

// GET /tasks/stream[?taskId=] upgrades to a websocket and pushes status
// transitions. Participants only see their own tasks.
func (h *TaskStreamHandler) Stream(ctx *gin.Context) {
	var q streamQuery
	if !BindQuery(ctx, &q) {
		return
	}

	actor := middlewares.ActorFromContext(ctx)
	if actor == nil {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}
	admin := middlewares.IsAdmin(ctx)

	subCtx, cancel := context.WithCancel(ctx.Request.Context())
	defer cancel()

	msgs, err := h.feed.Subscribe(subCtx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "task.stream_subscribe_failed", "err", err)
		RespondError(ctx, http.StatusServiceUnavailable, "stream_unavailable", "Task stream is unavailable", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "task.stream_upgrade_failed", "err", err)
		return
	}
	defer conn.Close()

	// the client never sends anything; reading only notices a close
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-subCtx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if q.TaskID != "" && m.TaskID != q.TaskID {
				continue
			}
			if !admin && (m.ActorID == nil || *m.ActorID != *actor) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
