package middlewares

// gin context keys set by the middlewares and read by handlers and the
// request logger.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.user_id"
	CtxEmail     = "auth.email"
	CtxRole      = "auth.role"
	CtxTaskID    = "task_id"
	CtxWebinarID = "webinar_id"
)
