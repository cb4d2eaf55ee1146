package webinar

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/conventionhub/internal/directory"
	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/platform"
	"github.com/geocoder89/conventionhub/internal/repo/memory"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

var webinarStart = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func testWebinar(id int64, webinarURL string) convention.Convention {
	c := convention.Convention{
		ID:       id,
		Name:     "Cardiology update",
		Type:     "webinar",
		IsOnline: true,
		StartAt:  webinarStart,
		FinishAt: webinarStart.Add(2 * time.Hour),
	}
	if webinarURL != "" {
		c.Meta.WebinarURL = strPtr(webinarURL)
	}
	return c
}

// fakePlatform implements Platform with overridable funcs; unset calls
// return zero values.
type fakePlatform struct {
	mu    sync.Mutex
	calls []string

	sessionInfoFn  func(ctx context.Context, sessionID int64) (platform.SessionInfo, error)
	testIDFn       func(ctx context.Context, sessionID int64) (int64, bool)
	registerFn     func(ctx context.Context, sessionID int64, email string) (platform.Registration, error)
	visitorStatsFn func(ctx context.Context, eventID int64, startDate string) ([]platform.VisitorStat, error)
	testResultsFn  func(ctx context.Context, testID int64) (platform.TestResults, error)
}

func (f *fakePlatform) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) SessionInfo(ctx context.Context, sessionID int64) (platform.SessionInfo, error) {
	f.record("session_info")
	if f.sessionInfoFn == nil {
		return platform.SessionInfo{}, nil
	}
	return f.sessionInfoFn(ctx, sessionID)
}

func (f *fakePlatform) TestID(ctx context.Context, sessionID int64) (int64, bool) {
	f.record("test_id")
	if f.testIDFn == nil {
		return 0, false
	}
	return f.testIDFn(ctx, sessionID)
}

func (f *fakePlatform) Register(ctx context.Context, sessionID int64, email string) (platform.Registration, error) {
	f.record("register")
	if f.registerFn == nil {
		return platform.Registration{}, nil
	}
	return f.registerFn(ctx, sessionID, email)
}

func (f *fakePlatform) VisitorStats(ctx context.Context, eventID int64, startDate string) ([]platform.VisitorStat, error) {
	f.record("visitor_stats")
	if f.visitorStatsFn == nil {
		return nil, nil
	}
	return f.visitorStatsFn(ctx, eventID, startDate)
}

func (f *fakePlatform) TestResults(ctx context.Context, testID int64) (platform.TestResults, error) {
	f.record("test_results")
	if f.testResultsFn == nil {
		return platform.TestResults{}, nil
	}
	return f.testResultsFn(ctx, testID)
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *fakeQueue) Enqueue(_ context.Context, id string, _ time.Duration) error {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	q.mu.Unlock()
	return nil
}

// fixture wires the in-memory stores the way cmd/worker wires postgres.
type fixture struct {
	users          *memory.UsersRepo
	participations *memory.ParticipationsRepo
	conventions    *memory.ConventionsRepo
	tasks          *memory.TasksRepo
	refs           *memory.DirectoryRepo
	dir            *directory.Directory
	queue          *fakeQueue
	submitter      *tasks.Submitter
}

func newFixture(t *testing.T, users ...user.User) *fixture {
	t.Helper()

	f := &fixture{
		users:       memory.NewUsersRepo(users...),
		conventions: memory.NewConventionsRepo(),
		tasks:       memory.NewTasksRepo(),
		refs: &memory.DirectoryRepo{
			Specialities: map[int]string{3: "Cardiology"},
			Regions:      map[string]string{"RU:77": "Moscow"},
		},
		queue: &fakeQueue{},
	}
	f.participations = memory.NewParticipationsRepo(f.users)
	f.dir = directory.New(f.users, f.refs, time.Minute)
	f.submitter = tasks.NewSubmitter(f.tasks, f.queue, nil, discardLogger())
	return f
}
