package webinar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/geocoder89/conventionhub/internal/platform"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReconcileInput identifies one webinar on the platform.
type ReconcileInput struct {
	ConventionID int64
	EventID      int64
	TestID       *int64
	StartDate    string // YYYY-MM-DD
}

type testOutcome struct {
	passed  *bool
	correct *int
}

// Reconciler merges platform attendance and test results into the
// participation rows of one webinar.
type Reconciler struct {
	platform       Platform
	directory      Directory
	participations ParticipationStore
	log            *slog.Logger
	prom           *observability.Prom
	now            func() time.Time
}

func NewReconciler(p Platform, dir Directory, participations ParticipationStore, log *slog.Logger, prom *observability.Prom) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		platform:       p,
		directory:      dir,
		participations: participations,
		log:            log,
		prom:           prom,
		now:            time.Now,
	}
}

// Reconcile returns how many participation rows were written. Platform read
// failures count as no data; store failures abort the pass.
// Values overwrite what was stored before, so running it twice on the same
// feed gives the same rows.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (matched int, err error) {
	ctx, span := observability.Tracer().Start(ctx, "webinar.reconcile")
	span.SetAttributes(
		attribute.Int64("webinar.id", in.ConventionID),
		attribute.Int64("platform.event_id", in.EventID),
	)
	defer func() {
		span.SetAttributes(attribute.Int("reconcile.matched", matched))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	visitors, err := r.platform.VisitorStats(ctx, in.EventID, in.StartDate)
	if err != nil {
		r.log.WarnContext(ctx, "reconcile.visitors_degraded", "webinar_id", in.ConventionID, "err", err)
		visitors = nil
	}

	outcomes := r.testOutcomes(ctx, in)

	for _, v := range visitors {
		if v.Email == nil || strings.TrimSpace(*v.Email) == "" {
			continue
		}

		u, err := r.directory.UserByEmail(ctx, strings.TrimSpace(*v.Email))
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			return matched, fmt.Errorf("resolve visitor: %w", err)
		}

		ok, err := r.participations.IsEnabledParticipant(ctx, in.ConventionID, u.ID)
		if err != nil {
			return matched, fmt.Errorf("check participant %d: %w", u.ID, err)
		}
		if !ok {
			continue
		}

		stats := attendance(v, in.EventID)
		if o, found := outcomes[normalizeEmail(u.Email)]; found {
			stats.TestPassed, stats.CorrectAnswerCount = o.passed, o.correct
		}
		now := r.now().UTC()
		stats.UpdatedAt = &now

		if err := r.participations.UpsertStats(ctx, in.ConventionID, u.ID, stats); err != nil {
			return matched, fmt.Errorf("store stats for user %d: %w", u.ID, err)
		}
		matched++
	}

	if r.prom != nil {
		r.prom.ReconcileMatched.Add(float64(matched))
	}
	r.log.InfoContext(ctx, "reconcile.done",
		"webinar_id", in.ConventionID,
		"visitors", len(visitors),
		"matched", matched,
	)
	return matched, nil
}

func (r *Reconciler) testOutcomes(ctx context.Context, in ReconcileInput) map[string]testOutcome {
	out := map[string]testOutcome{}
	if in.TestID == nil {
		return out
	}

	res, err := r.platform.TestResults(ctx, *in.TestID)
	if err != nil {
		r.log.WarnContext(ctx, "reconcile.test_results_degraded",
			"webinar_id", in.ConventionID,
			"test_id", *in.TestID,
			"err", err,
		)
		return out
	}

	for _, u := range res.Users {
		if u.Email == nil || strings.TrimSpace(*u.Email) == "" {
			continue
		}
		out[normalizeEmail(*u.Email)] = testOutcome{passed: u.IsPassed, correct: u.CorrectlyAnsweredQuestions.Value()}
	}
	return out
}

// attendance picks the visitor's session for eventID (the last one if the
// feed repeats it) and derives the counters. No session means zeros.
func attendance(v platform.VisitorStat, eventID int64) participation.Stats {
	var sess *platform.EventSession
	for i := range v.EventSessions {
		if int64(v.EventSessions[i].EventID) == eventID {
			sess = &v.EventSessions[i]
		}
	}
	if sess == nil {
		return participation.Stats{}
	}

	var s participation.Stats
	if ac := sess.AttentionControl; ac != nil {
		s.ConfirmCount = int(ac.ConfirmedCount)
		s.ControlCount = int(ac.ShownCount)
	}

	var seconds int64
	for _, c := range sess.Connections {
		seconds += int64(c.Duration)
	}
	s.DurationMinutes = DurationMinutes(seconds)
	return s
}

// DurationMinutes rounds half away from zero: 125s is 2 minutes, 90s is 2.
func DurationMinutes(seconds int64) int {
	return int(math.Round(float64(seconds) / 60))
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
