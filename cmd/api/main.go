package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/conventionhub/internal/auth"
	"github.com/geocoder89/conventionhub/internal/config"
	"github.com/geocoder89/conventionhub/internal/db"
	"github.com/geocoder89/conventionhub/internal/directory"
	httpx "github.com/geocoder89/conventionhub/internal/http"
	"github.com/geocoder89/conventionhub/internal/http/handlers"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/geocoder89/conventionhub/internal/platform"
	"github.com/geocoder89/conventionhub/internal/queue"
	"github.com/geocoder89/conventionhub/internal/queue/redisclient"
	"github.com/geocoder89/conventionhub/internal/reminders"
	"github.com/geocoder89/conventionhub/internal/repo/postgres"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"github.com/geocoder89/conventionhub/internal/webinar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env, cfg.ServiceName+"-api")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	startCtx, cancelStart := config.WithTimeout(15 * time.Second)
	defer cancelStart()

	shutdownTracer, err := observability.InitTracer(startCtx, cfg.ServiceName+"-api", cfg.Otel.Endpoint, cfg.Otel.Enabled)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	pool, err := db.NewPool(startCtx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.Migrate {
		if err := db.Migrate(startCtx, pool); err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
	}

	rc := redisclient.New(redisclient.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rc.Close()

	// repositories
	conventionsRepo := postgres.NewConventionsRepo(pool, prom)
	participationsRepo := postgres.NewParticipationsRepo(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	refsRepo := postgres.NewDirectoryRepo(pool, prom)

	dir := directory.New(usersRepo, refsRepo, cfg.DirectoryCacheTTL)
	client := platform.NewClient(platform.Config{
		BaseURL: cfg.Platform.BaseURL,
		APIKey:  cfg.Platform.APIKey,
		Timeout: cfg.Platform.Timeout,
	}, log, prom)

	signaler := tasks.Signalers{tasks.NewLogSignaler(log), tasks.NewRedisSignaler(rc.Raw(), log)}
	submitter := tasks.NewSubmitter(tasksRepo, queue.New(rc.Raw(), log), signaler, log)

	sched := reminders.NewScheduler(reminders.NewRedisStore(rc.Raw()), reminders.Config{
		AppURL:   cfg.AppURL,
		Location: cfg.Location(),
	}, log)

	regs := webinar.NewRegistrations(webinar.RegistrationDeps{
		Conventions:    conventionsRepo,
		Participations: participationsRepo,
		Tasks:          tasksRepo,
		Submitter:      submitter,
		Platform:       client,
		Directory:      dir,
		Reminders:      sched,
		Log:            log,
	})
	stats := webinar.NewStatistics(webinar.StatisticsDeps{
		Conventions:    conventionsRepo,
		Participations: participationsRepo,
		Submitter:      submitter,
		Platform:       client,
		Directory:      dir,
		Reconciler:     webinar.NewReconciler(client, dir, participationsRepo, log, prom),
		Log:            log,
	})

	router := httpx.NewRouter(httpx.Deps{
		Env:           cfg.Env,
		ServiceName:   cfg.ServiceName + "-api",
		Log:           log,
		Prom:          prom,
		Gatherer:      reg,
		Tokens:        auth.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Statistics:    stats,
		Registrations: regs,
		Tasks:         tasksRepo,
		TaskFeed:      tasks.NewRedisStatusFeed(rc.Raw(), log),
		Location:      cfg.Location(),
		Checks: map[string]handlers.Check{
			"postgres": pool.Ping,
			"redis":    rc.Ping,
		},
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		RegisterRateLimit:  cfg.HTTP.RegisterRateLimit,
		RegisterRateWindow: cfg.HTTP.RegisterRateWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// statistic-recalculate without async waits on the platform
		WriteTimeout: cfg.Platform.Timeout*3 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
