package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/conventionhub/internal/config"
	"github.com/geocoder89/conventionhub/internal/db"
	"github.com/geocoder89/conventionhub/internal/directory"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/executor"
	"github.com/geocoder89/conventionhub/internal/notifications"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/geocoder89/conventionhub/internal/platform"
	"github.com/geocoder89/conventionhub/internal/queue"
	"github.com/geocoder89/conventionhub/internal/queue/redisclient"
	"github.com/geocoder89/conventionhub/internal/queue/worker"
	"github.com/geocoder89/conventionhub/internal/reminders"
	"github.com/geocoder89/conventionhub/internal/repo/postgres"
	"github.com/geocoder89/conventionhub/internal/storage"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"github.com/geocoder89/conventionhub/internal/webinar"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env, cfg.ServiceName+"-worker")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName+"-worker", cfg.Otel.Endpoint, cfg.Otel.Enabled)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	// the worker health server exposes the default registry on /metrics
	prom := observability.NewProm(prometheus.DefaultRegisterer)

	pool, err := db.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rc := redisclient.New(redisclient.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rc.Close()

	artifacts, err := newArtifactStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("storage init failed", "err", err)
		os.Exit(1)
	}

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

	q := queue.New(rc.Raw(), log)
	signaler := tasks.Signalers{tasks.NewLogSignaler(log), tasks.NewRedisSignaler(rc.Raw(), log)}
	submitter := tasks.NewSubmitter(tasksRepo, q, signaler, log)

	reminderStore := reminders.NewRedisStore(rc.Raw())
	sched := reminders.NewScheduler(reminderStore, reminders.Config{
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
	exporter := webinar.NewExporter(artifacts, log)

	exec := executor.New(tasksRepo, signaler, log, prom)
	exec.Register(task.KindUserWebinarRegistration, executor.HandlerFunc(regs.HandleRegistration))
	exec.Register(task.KindExportWebinarVisitors, executor.HandlerFunc(exporter.HandleExport))
	exec.Register(task.KindRecalculateWebinarStatistic, executor.HandlerFunc(stats.HandleRecalculation))

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		Concurrency:   cfg.Worker.Concurrency,
		PollTimeout:   cfg.Worker.PollTimeout,
		ShutdownGrace: cfg.Worker.ShutdownGrace,
	}, q, exec, log, nil, pool, rc)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log, notifications.LogNotifierConfig{}),
		notifications.ProtectedNotifierConfig{
			Timeout:          cfg.Reminders.SendTimeout,
			FailureThreshold: cfg.Reminders.FailureThreshold,
			Cooldown:         cfg.Reminders.Cooldown,
			HalfOpenMaxCalls: 1,
		},
	)
	dispatcher := reminders.NewDispatcher(reminderStore, notifier, log, prom, reminders.DispatcherConfig{
		Interval:    cfg.Reminders.PollInterval,
		RetryDelay:  cfg.Reminders.RetryDelay,
		MaxAttempts: cfg.Reminders.MaxAttempts,
	})
	go dispatcher.Run(ctx)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID, "health_port", cfg.Worker.HealthPort)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
}

func newArtifactStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.ArtifactStore, error) {
	switch cfg.Driver {
	case "s3":
		return storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PresignExpire:   cfg.S3PresignExpire,
		}, log)
	default:
		return storage.NewLocal(cfg.LocalDir)
	}
}
