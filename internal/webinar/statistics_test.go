package webinar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/platform"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

func newStatistics(t *testing.T, p Platform) (*Statistics, *fixture) {
	t.Helper()

	f := newFixture(t,
		user.User{
			ID: 1, Email: "a@x.com", FirstName: "Anna", LastName: "Ivanova",
			Profile: user.Profile{WorkPlace: "City clinic", SpecialityID: 3, RegionID: 77, CountryCode: "RU"},
		},
		user.User{ID: 2, Email: "b@x.com", FirstName: "Boris", LastName: "Petrov"},
		user.User{ID: 3, Email: "c@x.com"},
	)
	f.conventions.Put(testWebinar(10, webinarURL))
	f.conventions.Put(testWebinar(11, ""))

	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 1, Enabled: true,
		Stats: &participation.Stats{ConfirmCount: 1, ControlCount: 2, DurationMinutes: 40, TestPassed: boolPtr(true), CorrectAnswerCount: intPtr(9)}})
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 2, Enabled: true,
		Stats: &participation.Stats{ConfirmCount: 5, ControlCount: 5, DurationMinutes: 60}})
	// enabled but never reconciled
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 3, Enabled: true})

	r := NewReconciler(p, f.dir, f.participations, discardLogger(), nil)
	s := NewStatistics(StatisticsDeps{
		Conventions:    f.conventions,
		Participations: f.participations,
		Submitter:      f.submitter,
		Platform:       p,
		Directory:      f.dir,
		Reconciler:     r,
		Log:            discardLogger(),
	})
	return s, f
}

func TestListVisitors(t *testing.T) {
	s, _ := newStatistics(t, &fakePlatform{})

	rows, err := s.ListVisitors(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListVisitors: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 visitors, got %d", len(rows))
	}

	// lowest confirm count first
	if rows[0].UserID != 1 || rows[1].UserID != 2 {
		t.Fatalf("expected ascending confirm count order, got %d,%d", rows[0].UserID, rows[1].UserID)
	}

	a := rows[0]
	if a.FullName != "Ivanova Anna" || a.Speciality != "Cardiology" || a.Region != "Moscow" || a.WorkPlace != "City clinic" {
		t.Fatalf("unexpected enrichment %+v", a)
	}
	if a.Email != "a@x.com" || *a.CorrectAnswerCount != 9 || !*a.TestPassed {
		t.Fatalf("unexpected stats %+v", a)
	}

	if rows[1].Speciality != "" || rows[1].Region != "" {
		t.Fatalf("expected blank names without profile ids, got %+v", rows[1])
	}

	if _, err := s.ListVisitors(context.Background(), 404); !errors.Is(err, convention.ErrNotFound) {
		t.Fatalf("expected convention.ErrNotFound, got %v", err)
	}
}

func TestRequestExport(t *testing.T) {
	s, f := newStatistics(t, &fakePlatform{})
	ctx := context.Background()

	tk, err := s.RequestExport(ctx, "admin-7", 10)
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if tk.Kind != task.KindExportWebinarVisitors || tk.Status != task.StatusQueued {
		t.Fatalf("unexpected task %+v", tk)
	}
	if tk.ActorID == nil || *tk.ActorID != "admin-7" {
		t.Fatalf("actor not recorded: %v", tk.ActorID)
	}
	if len(f.queue.ids) != 1 {
		t.Fatalf("expected one enqueued id, got %v", f.queue.ids)
	}

	p, err := tasks.DecodeAs[tasks.ExportWebinarVisitorsPayload](tk)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.FileName != "webinar_10_2026-03-10" || len(p.Rows) != 2 || p.RequestedBy != "admin-7" {
		t.Fatalf("unexpected payload %+v", p)
	}

	f.conventions.Put(testWebinar(12, webinarURL))
	if _, err := s.RequestExport(ctx, "admin-7", 12); !errors.Is(err, ErrNoVisitors) {
		t.Fatalf("expected ErrNoVisitors, got %v", err)
	}
}

func TestRecalculate(t *testing.T) {
	p := &fakePlatform{
		testIDFn: func(_ context.Context, sessionID int64) (int64, bool) {
			if sessionID != 501 {
				t.Fatalf("unexpected session %d", sessionID)
			}
			return 900, true
		},
		visitorStatsFn: func(_ context.Context, eventID int64, from string) ([]platform.VisitorStat, error) {
			if eventID != 77 || from != "2026-03-10" {
				t.Fatalf("unexpected query %d %s", eventID, from)
			}
			return []platform.VisitorStat{visitor("c@x.com", 77, 2, 2, 120)}, nil
		},
		testResultsFn: func(_ context.Context, testID int64) (platform.TestResults, error) {
			return platform.TestResults{Users: []platform.TestUserResult{{Email: strPtr("c@x.com"), IsPassed: boolPtr(true)}}}, nil
		},
	}
	s, f := newStatistics(t, p)
	ctx := context.Background()

	matched, err := s.Recalculate(ctx, 10)
	if err != nil || matched != 1 {
		t.Fatalf("expected 1/nil, got %d/%v", matched, err)
	}
	row, _ := f.participations.Get(ctx, 10, 3)
	if row.Stats == nil || row.Stats.DurationMinutes != 2 || row.Stats.TestPassed == nil || !*row.Stats.TestPassed {
		t.Fatalf("unexpected stats %+v", row.Stats)
	}

	before := len(p.Calls())
	matched, err = s.Recalculate(ctx, 11)
	if err != nil || matched != 0 {
		t.Fatalf("expected 0/nil without session, got %d/%v", matched, err)
	}
	if len(p.Calls()) != before {
		t.Fatal("platform called for webinar without session")
	}
}

func TestHandleRecalculation(t *testing.T) {
	s, f := newStatistics(t, &fakePlatform{})
	ctx := context.Background()

	tk, err := s.RequestRecalculation(ctx, nil, 10)
	if err != nil {
		t.Fatalf("RequestRecalculation: %v", err)
	}
	if len(f.queue.ids) != 1 || f.queue.ids[0] != tk.ID {
		t.Fatalf("not enqueued: %v", f.queue.ids)
	}

	out, err := s.HandleRecalculation(ctx, tk)
	if err != nil {
		t.Fatalf("HandleRecalculation: %v", err)
	}
	if string(out) != `{"matched":0}` {
		t.Fatalf("unexpected result %s", out)
	}

	if _, err := s.RequestRecalculation(ctx, nil, 404); !errors.Is(err, convention.ErrNotFound) {
		t.Fatalf("expected convention.ErrNotFound, got %v", err)
	}
}

func TestWebinarStatus(t *testing.T) {
	tests := []struct {
		name         string
		webinarID    int64
		info         platform.SessionInfo
		err          error
		wantStatus   bool
		wantFinished bool
	}{
		{"stopped", 10, platform.SessionInfo{Status: "STOP", Raw: json.RawMessage(`{"status":"STOP"}`)}, nil, true, true},
		{"active", 10, platform.SessionInfo{Status: "ACTIVE", Raw: json.RawMessage(`{"status":"ACTIVE"}`)}, nil, true, false},
		{"empty document", 10, platform.SessionInfo{Raw: json.RawMessage(`{}`)}, nil, false, false},
		{"unreachable", 10, platform.SessionInfo{}, platform.ErrUnavailable, false, false},
		{"no session", 11, platform.SessionInfo{}, nil, false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlatform{
				sessionInfoFn: func(context.Context, int64) (platform.SessionInfo, error) { return tt.info, tt.err },
			}
			s, _ := newStatistics(t, p)

			raw, err := s.WebinarStatus(context.Background(), tt.webinarID)
			if err != nil {
				t.Fatalf("WebinarStatus: %v", err)
			}
			if (raw != nil) != tt.wantStatus {
				t.Fatalf("status presence = %v, want %v (%s)", raw != nil, tt.wantStatus, raw)
			}

			finished, err := s.IsFinished(context.Background(), tt.webinarID)
			if err != nil || finished != tt.wantFinished {
				t.Fatalf("IsFinished = %v/%v, want %v", finished, err, tt.wantFinished)
			}
		})
	}
}

func TestWebinarsBetween(t *testing.T) {
	s, f := newStatistics(t, &fakePlatform{})

	offline := testWebinar(20, "")
	offline.IsOnline = false
	f.conventions.Put(offline)

	later := testWebinar(21, "")
	later.StartAt = webinarStart.Add(30 * 24 * time.Hour)
	f.conventions.Put(later)

	got, err := s.WebinarsBetween(context.Background(), webinarStart.Add(-time.Hour), webinarStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("WebinarsBetween: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected webinars 10 and 11, got %d", len(got))
	}
	for _, c := range got {
		if c.ID != 10 && c.ID != 11 {
			t.Fatalf("unexpected webinar %d", c.ID)
		}
	}
}
