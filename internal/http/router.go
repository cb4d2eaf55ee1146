package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/auth"
	"github.com/geocoder89/conventionhub/internal/http/handlers"
	"github.com/geocoder89/conventionhub/internal/http/middlewares"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Env         string
	ServiceName string
	Log         *slog.Logger
	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer

	Tokens        middlewares.TokenVerifier
	Statistics    handlers.StatisticsService
	Registrations handlers.RegistrationService
	Tasks         handlers.TaskReader
	TaskFeed      tasks.StatusFeed
	Checks        map[string]handlers.Check
	Location      *time.Location

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RegisterRateLimit  int
	RegisterRateWindow time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	if d.RegisterRateLimit <= 0 {
		d.RegisterRateLimit = 10
	}
	if d.RegisterRateWindow <= 0 {
		d.RegisterRateWindow = time.Minute
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(d.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	registerLimiter := middlewares.NewRateLimiter(d.RegisterRateLimit, d.RegisterRateWindow)

	webinars := handlers.NewWebinarsHandler(d.Statistics, d.Registrations, d.Log, d.Location)
	tasksHandler := handlers.NewTasksHandler(d.Tasks, d.Log)

	api := r.Group("/", authMW.RequireAuth())
	{
		api.GET("/webinars", webinars.List)
		api.GET("/webinars/:id/webinar-status", webinars.Status)
		api.GET("/webinars/:id/finished", webinars.Finished)
		api.GET("/webinars/:id/registration", webinars.Registration)
		api.POST("/webinars/:id/register",
			registerLimiter.Middleware(middlewares.KeyByUserOrIP),
			webinars.Register,
		)
		api.GET("/tasks/:id", tasksHandler.Get)
		if d.TaskFeed != nil {
			stream := handlers.NewTaskStreamHandler(d.TaskFeed, d.Log, d.CORSAllowedOrigins)
			api.GET("/tasks/stream", stream.Stream)
		}
	}

	admin := api.Group("/", authMW.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/webinars/:id/statistic", webinars.Statistic)
		admin.POST("/webinars/:id/statistic-export", webinars.Export)
		admin.POST("/webinars/:id/statistic-recalculate", webinars.Recalculate)
	}

	return r
}
