package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/conventionhub/internal/db"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Needs a scratch database: TEST_DB_DSN=postgres://...; every table is truncated.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE convention_participants, tasks, conventions, users, regions, specialities RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return pool
}

func seedParticipant(t *testing.T, pool *pgxpool.Pool) (conventionID, userID int64) {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	err := pool.QueryRow(ctx, `
		INSERT INTO conventions (name, type, is_online, start_at, finish_at, meta)
		VALUES ('Cardiology update', 'webinar', TRUE, $1, $2, '{"webinar_url":"https://platform.example/app/event/77/501/edit"}')
		RETURNING id`, start, start.Add(2*time.Hour)).Scan(&conventionID)
	if err != nil {
		t.Fatalf("seed convention: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, first_name, last_name) VALUES ('anna@example.com', 'Anna', 'Ivanova')
		RETURNING id`).Scan(&userID)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	_, err = pool.Exec(ctx, `INSERT INTO convention_participants (convention_id, user_id) VALUES ($1, $2)`, conventionID, userID)
	if err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	return conventionID, userID
}

func TestParticipationsRepo_StatsKeepRegistrationFields(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	convID, userID := seedParticipant(t, pool)

	tasks := postgres.NewTasksRepo(pool, nil)
	repo := postgres.NewParticipationsRepo(pool, nil)

	tk, err := tasks.Create(ctx, task.New(task.CreateRequest{
		Kind:    task.KindUserWebinarRegistration,
		Payload: json.RawMessage(`{"userId":1,"webinarId":1}`),
	}))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := repo.SetRegistrationTask(ctx, convID, userID, tk.ID); err != nil {
		t.Fatalf("SetRegistrationTask: %v", err)
	}
	if err := repo.SetAccessURL(ctx, convID, userID, "https://platform.example/join/abc"); err != nil {
		t.Fatalf("SetAccessURL: %v", err)
	}

	passed := true
	if err := repo.UpsertStats(ctx, convID, userID, participation.Stats{
		ConfirmCount: 3, ControlCount: 4, DurationMinutes: 42, TestPassed: &passed,
	}); err != nil {
		t.Fatalf("UpsertStats: %v", err)
	}

	got, err := repo.Get(ctx, convID, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PersonalAccessURL == nil || *got.PersonalAccessURL != "https://platform.example/join/abc" {
		t.Fatalf("access url lost: %+v", got)
	}
	if got.RegistrationTaskID == nil || *got.RegistrationTaskID != tk.ID {
		t.Fatalf("task reference lost: %+v", got)
	}
	if got.Stats == nil || got.Stats.DurationMinutes != 42 || got.Stats.CorrectAnswerCount != nil {
		t.Fatalf("unexpected stats: %+v", got.Stats)
	}

	visitors, err := repo.ListVisitors(ctx, convID)
	if err != nil {
		t.Fatalf("ListVisitors: %v", err)
	}
	if len(visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(visitors))
	}
}

func TestParticipationsRepo_Missing(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := postgres.NewParticipationsRepo(pool, nil)

	if _, err := repo.Get(ctx, 1, 1); !errors.Is(err, participation.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if err := repo.SetAccessURL(ctx, 1, 1, "x"); !errors.Is(err, participation.ErrNotFound) {
		t.Fatalf("SetAccessURL: expected ErrNotFound, got %v", err)
	}

	ok, err := repo.IsEnabledParticipant(ctx, 1, 1)
	if err != nil || ok {
		t.Fatalf("IsEnabledParticipant = %v, %v", ok, err)
	}
}

func TestTasksRepo_Lifecycle(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := postgres.NewTasksRepo(pool, nil)

	tk, err := repo.Create(ctx, task.New(task.CreateRequest{
		Kind:    task.KindRecalculateWebinarStatistic,
		Payload: json.RawMessage(`{"webinarId":10}`),
	}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.MarkRunning(ctx, tk.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := repo.MarkSucceeded(ctx, tk.ID, json.RawMessage(`{"matched":2}`)); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	got, err := repo.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	var result struct {
		Matched int `json:"matched"`
	}
	if err := json.Unmarshal(got.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Status != task.StatusSucceeded || result.Matched != 2 {
		t.Fatalf("unexpected task: %+v result=%s", got, got.Result)
	}

	if _, err := repo.GetByID(ctx, "5b0f8f0e-8d7f-4c43-9d5c-1f0e4b0a9a11"); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
