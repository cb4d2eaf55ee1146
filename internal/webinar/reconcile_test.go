package webinar

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/platform"
)

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		seconds int64
		want    int
	}{
		{0, 0},
		{29, 0},
		{30, 1},
		{90, 2},
		{125, 2},
		{600, 10},
	}

	for _, tt := range tests {
		if got := DurationMinutes(tt.seconds); got != tt.want {
			t.Fatalf("DurationMinutes(%d) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestAttendance(t *testing.T) {
	v := platform.VisitorStat{
		Email: strPtr("a@x.com"),
		EventSessions: []platform.EventSession{
			{EventID: 12, AttentionControl: &platform.AttentionControl{ConfirmedCount: 9, ShownCount: 9}},
			{
				EventID:          77,
				AttentionControl: &platform.AttentionControl{ConfirmedCount: 1, ShownCount: 2},
				Connections:      []platform.Connection{{Duration: 30}, {Duration: 95}},
			},
		},
	}

	got := attendance(v, 77)
	if got.ConfirmCount != 1 || got.ControlCount != 2 || got.DurationMinutes != 2 {
		t.Fatalf("unexpected stats %+v", got)
	}

	if got := attendance(v, 5); got != (participation.Stats{}) {
		t.Fatalf("expected zero stats without matching session, got %+v", got)
	}

	// repeated event id: the last one is used
	v.EventSessions = append(v.EventSessions, platform.EventSession{EventID: 77})
	if got := attendance(v, 77); got.ConfirmCount != 0 || got.DurationMinutes != 0 {
		t.Fatalf("expected last matching session, got %+v", got)
	}
}

func visitor(email string, eventID int64, confirmed, shown int64, durations ...int64) platform.VisitorStat {
	v := platform.VisitorStat{
		EventSessions: []platform.EventSession{{
			EventID:          platform.Int(eventID),
			AttentionControl: &platform.AttentionControl{ConfirmedCount: platform.Int(confirmed), ShownCount: platform.Int(shown)},
		}},
	}
	if email != "" {
		v.Email = strPtr(email)
	}
	for _, d := range durations {
		v.EventSessions[0].Connections = append(v.EventSessions[0].Connections, platform.Connection{Duration: platform.Int(d)})
	}
	return v
}

func TestReconcile_Event77(t *testing.T) {
	f := newFixture(t, user.User{ID: 1, Email: "a@x.com"})
	f.participations.Put(participation.Participation{
		ConventionID:      10,
		UserID:            1,
		Enabled:           true,
		PersonalAccessURL: strPtr("https://platform/a"),
	})

	p := &fakePlatform{
		visitorStatsFn: func(_ context.Context, eventID int64, startDate string) ([]platform.VisitorStat, error) {
			if eventID != 77 || startDate != "2026-03-10" {
				t.Fatalf("unexpected query event=%d from=%s", eventID, startDate)
			}
			return []platform.VisitorStat{visitor("a@x.com", 77, 3, 5, 600)}, nil
		},
	}

	r := NewReconciler(p, f.dir, f.participations, discardLogger(), nil)
	matched, err := r.Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77, StartDate: "2026-03-10"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if matched != 1 {
		t.Fatalf("expected matched=1, got %d", matched)
	}

	row, _ := f.participations.Get(context.Background(), 10, 1)
	s := row.Stats
	if s == nil || s.ConfirmCount != 3 || s.ControlCount != 5 || s.DurationMinutes != 10 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.TestPassed != nil || s.CorrectAnswerCount != nil {
		t.Fatalf("expected null test fields, got %v %v", s.TestPassed, s.CorrectAnswerCount)
	}
	for _, op := range p.Calls() {
		if op == "test_results" {
			t.Fatal("test results fetched without a test id")
		}
	}
}

func TestReconcile_SkipsIneligibleVisitors(t *testing.T) {
	f := newFixture(t,
		user.User{ID: 1, Email: "a@x.com"},
		user.User{ID: 2, Email: "disabled@x.com"},
		user.User{ID: 3, Email: "stranger@x.com"},
	)
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 1, Enabled: true})
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 2, Enabled: false})

	p := &fakePlatform{
		visitorStatsFn: func(context.Context, int64, string) ([]platform.VisitorStat, error) {
			return []platform.VisitorStat{
				visitor("", 77, 1, 1),
				visitor("   ", 77, 1, 1),
				visitor("unknown@x.com", 77, 1, 1),
				visitor("disabled@x.com", 77, 4, 4),
				visitor("stranger@x.com", 77, 4, 4),
				visitor("A@X.com", 77, 2, 2),
			}, nil
		},
	}

	matched, err := NewReconciler(p, f.dir, f.participations, discardLogger(), nil).
		Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if matched != 1 {
		t.Fatalf("expected only the enabled participant to match, got %d", matched)
	}

	disabled, _ := f.participations.Get(context.Background(), 10, 2)
	if disabled.Stats != nil {
		t.Fatalf("disabled participant was written: %+v", disabled.Stats)
	}
	if _, err := f.participations.Get(context.Background(), 10, 3); !errors.Is(err, participation.ErrNotFound) {
		t.Fatalf("reconciliation must not create rows, got %v", err)
	}
}

func TestReconcile_TestOutcomes(t *testing.T) {
	f := newFixture(t, user.User{ID: 1, Email: "a@x.com"}, user.User{ID: 2, Email: "b@x.com"})
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 1, Enabled: true})
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 2, Enabled: true})

	p := &fakePlatform{
		visitorStatsFn: func(context.Context, int64, string) ([]platform.VisitorStat, error) {
			return []platform.VisitorStat{visitor("a@x.com", 77, 1, 1), visitor("b@x.com", 77, 1, 1)}, nil
		},
		testResultsFn: func(_ context.Context, testID int64) (platform.TestResults, error) {
			if testID != 900 {
				t.Fatalf("unexpected test id %d", testID)
			}
			return platform.TestResults{Users: []platform.TestUserResult{
				{Email: strPtr("A@x.com"), CorrectlyAnsweredQuestions: answers(8), IsPassed: boolPtr(true)},
				{Email: nil, CorrectlyAnsweredQuestions: answers(1), IsPassed: boolPtr(false)},
			}}, nil
		},
	}

	testID := int64(900)
	if _, err := NewReconciler(p, f.dir, f.participations, discardLogger(), nil).
		Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77, TestID: &testID}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	a, _ := f.participations.Get(context.Background(), 10, 1)
	if a.Stats.TestPassed == nil || !*a.Stats.TestPassed || a.Stats.CorrectAnswerCount == nil || *a.Stats.CorrectAnswerCount != 8 {
		t.Fatalf("unexpected outcome for a: %+v", a.Stats)
	}

	b, _ := f.participations.Get(context.Background(), 10, 2)
	if b.Stats.TestPassed != nil || b.Stats.CorrectAnswerCount != nil {
		t.Fatalf("expected null outcome for b: %+v", b.Stats)
	}
}

func TestReconcile_IdempotentAndPreservesRegistration(t *testing.T) {
	f := newFixture(t, user.User{ID: 1, Email: "a@x.com"})
	f.participations.Put(participation.Participation{
		ConventionID:       10,
		UserID:             1,
		Enabled:            true,
		PersonalAccessURL:  strPtr("https://platform/a"),
		RegistrationTaskID: strPtr("task-1"),
	})

	p := &fakePlatform{
		visitorStatsFn: func(context.Context, int64, string) ([]platform.VisitorStat, error) {
			return []platform.VisitorStat{visitor("a@x.com", 77, 3, 5, 30, 95)}, nil
		},
		testResultsFn: func(context.Context, int64) (platform.TestResults, error) {
			return platform.TestResults{Users: []platform.TestUserResult{
				{Email: strPtr("a@x.com"), CorrectlyAnsweredQuestions: answers(4), IsPassed: boolPtr(false)},
			}}, nil
		},
	}
	r := NewReconciler(p, f.dir, f.participations, discardLogger(), nil)
	testID := int64(1)
	in := ReconcileInput{ConventionID: 10, EventID: 77, TestID: &testID}

	if _, err := r.Reconcile(context.Background(), in); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := f.participations.Get(context.Background(), 10, 1)

	if _, err := r.Reconcile(context.Background(), in); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := f.participations.Get(context.Background(), 10, 1)

	strip := func(s participation.Stats) participation.Stats { s.UpdatedAt = nil; return s }
	if !reflect.DeepEqual(strip(*first.Stats), strip(*second.Stats)) {
		t.Fatalf("values changed between identical runs: %+v vs %+v", first.Stats, second.Stats)
	}
	if second.Stats.DurationMinutes != 2 || second.Stats.ConfirmCount != 3 {
		t.Fatalf("values accumulated: %+v", second.Stats)
	}

	if !second.Enabled || *second.PersonalAccessURL != "https://platform/a" || *second.RegistrationTaskID != "task-1" {
		t.Fatalf("registration fields touched: %+v", second)
	}
}

func TestReconcile_DegradedReads(t *testing.T) {
	f := newFixture(t, user.User{ID: 1, Email: "a@x.com"})
	f.participations.Put(participation.Participation{ConventionID: 10, UserID: 1, Enabled: true})

	p := &fakePlatform{
		visitorStatsFn: func(context.Context, int64, string) ([]platform.VisitorStat, error) {
			return nil, platform.ErrUnavailable
		},
	}
	r := NewReconciler(p, f.dir, f.participations, discardLogger(), nil)

	matched, err := r.Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77})
	if err != nil || matched != 0 {
		t.Fatalf("expected degraded 0/nil, got %d/%v", matched, err)
	}

	p.visitorStatsFn = func(context.Context, int64, string) ([]platform.VisitorStat, error) {
		return []platform.VisitorStat{visitor("a@x.com", 77, 1, 1)}, nil
	}
	p.testResultsFn = func(context.Context, int64) (platform.TestResults, error) {
		return platform.TestResults{}, platform.ErrUnavailable
	}
	testID := int64(5)

	matched, err = r.Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77, TestID: &testID})
	if err != nil || matched != 1 {
		t.Fatalf("expected 1/nil with failed test results, got %d/%v", matched, err)
	}
	row, _ := f.participations.Get(context.Background(), 10, 1)
	if row.Stats.TestPassed != nil {
		t.Fatalf("expected null test outcome, got %v", *row.Stats.TestPassed)
	}
}

type failingParticipations struct {
	ParticipationStore
}

func (failingParticipations) IsEnabledParticipant(context.Context, int64, int64) (bool, error) {
	return false, errors.New("db down")
}

func TestReconcile_StoreFailureAborts(t *testing.T) {
	f := newFixture(t, user.User{ID: 1, Email: "a@x.com"})
	p := &fakePlatform{
		visitorStatsFn: func(context.Context, int64, string) ([]platform.VisitorStat, error) {
			return []platform.VisitorStat{visitor("a@x.com", 77, 1, 1)}, nil
		},
	}

	_, err := NewReconciler(p, f.dir, failingParticipations{f.participations}, discardLogger(), nil).
		Reconcile(context.Background(), ReconcileInput{ConventionID: 10, EventID: 77})
	if err == nil {
		t.Fatal("expected store error")
	}
}

func answers(n int64) *platform.Int {
	v := platform.Int(n)
	return &v
}
