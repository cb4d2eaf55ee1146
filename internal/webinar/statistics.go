package webinar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/platform"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

// ErrNoVisitors is returned when an export is requested before any
// participant has reconciled statistics.
var ErrNoVisitors = errors.New("webinar has no visitors to export")

type StatisticsDeps struct {
	Conventions    ConventionStore
	Participations ParticipationStore
	Submitter      TaskSubmitter
	Platform       Platform
	Directory      Directory
	Reconciler     *Reconciler
	Log            *slog.Logger
}

// Statistics serves the visitor listing, exports, recalculation and the
// platform status checks of webinars.
type Statistics struct {
	conventions    ConventionStore
	participations ParticipationStore
	submitter      TaskSubmitter
	factory        *tasks.Factory
	platform       Platform
	directory      Directory
	reconciler     *Reconciler
	log            *slog.Logger
}

func NewStatistics(d StatisticsDeps) *Statistics {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Statistics{
		conventions:    d.Conventions,
		participations: d.Participations,
		submitter:      d.Submitter,
		factory:        tasks.NewFactory(),
		platform:       d.Platform,
		directory:      d.Directory,
		reconciler:     d.Reconciler,
		log:            d.Log,
	}
}

// ListVisitors joins reconciled participants with their profile and
// reference names, most confirmations first.
func (s *Statistics) ListVisitors(ctx context.Context, webinarID int64) ([]participation.VisitorRow, error) {
	if _, err := s.conventions.GetByID(ctx, webinarID); err != nil {
		return nil, err
	}

	visitors, err := s.participations.ListVisitors(ctx, webinarID)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}

	rows := make([]participation.VisitorRow, 0, len(visitors))
	for _, v := range visitors {
		u, err := s.directory.UserByID(ctx, v.UserID)
		if err != nil {
			return nil, fmt.Errorf("load visitor %d: %w", v.UserID, err)
		}

		row := participation.VisitorRow{
			UserID:             v.UserID,
			Email:              v.Email,
			FullName:           u.FullName(),
			DurationMinutes:    v.Stats.DurationMinutes,
			ConfirmCount:       v.Stats.ConfirmCount,
			ControlCount:       v.Stats.ControlCount,
			CorrectAnswerCount: v.Stats.CorrectAnswerCount,
			TestPassed:         v.Stats.TestPassed,
			WorkPlace:          u.Profile.WorkPlace,
		}
		if row.Email == "" {
			row.Email = u.Email
		}

		if id := u.Profile.SpecialityID; id > 0 {
			if row.Speciality, err = s.directory.SpecialityName(ctx, id); err != nil {
				return nil, fmt.Errorf("speciality %d: %w", id, err)
			}
		}
		if id := u.Profile.RegionID; id > 0 {
			if row.Region, err = s.directory.RegionName(ctx, u.Profile.CountryCode, id); err != nil {
				return nil, fmt.Errorf("region %s/%d: %w", u.Profile.CountryCode, id, err)
			}
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// RequestExport snapshots the current listing into an export task.
func (s *Statistics) RequestExport(ctx context.Context, actorID string, webinarID int64) (task.Task, error) {
	c, err := s.conventions.GetByID(ctx, webinarID)
	if err != nil {
		return task.Task{}, err
	}

	rows, err := s.ListVisitors(ctx, webinarID)
	if err != nil {
		return task.Task{}, err
	}
	if len(rows) == 0 {
		return task.Task{}, ErrNoVisitors
	}

	t, err := s.factory.NewExportWebinarVisitors(actorID, webinarID, c.ExportFileName(), rows)
	if err != nil {
		return task.Task{}, err
	}
	return s.submitter.Submit(ctx, t)
}

// Recalculate reconciles the webinar synchronously. A webinar without a
// platform session has nothing to reconcile and returns 0.
func (s *Statistics) Recalculate(ctx context.Context, webinarID int64) (int, error) {
	c, err := s.conventions.GetByID(ctx, webinarID)
	if err != nil {
		return 0, err
	}

	props, err := c.PlatformProperties()
	if errors.Is(err, convention.ErrNoExternalSession) {
		s.log.InfoContext(ctx, "reconcile.skipped", "webinar_id", webinarID, "reason", SkippedNoExternalSession)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	in := ReconcileInput{
		ConventionID: c.ID,
		EventID:      props.EventID,
		StartDate:    c.StartDate(),
	}
	if id, ok := s.platform.TestID(ctx, props.SessionID); ok {
		in.TestID = &id
	}

	return s.reconciler.Reconcile(ctx, in)
}

func (s *Statistics) RequestRecalculation(ctx context.Context, actorID *string, webinarID int64) (task.Task, error) {
	if _, err := s.conventions.GetByID(ctx, webinarID); err != nil {
		return task.Task{}, err
	}

	t, err := s.factory.NewRecalculateWebinarStatistic(actorID, webinarID)
	if err != nil {
		return task.Task{}, err
	}
	return s.submitter.Submit(ctx, t)
}

// HandleRecalculation is the executor handler for
// recalculate_webinar_statistic.
func (s *Statistics) HandleRecalculation(ctx context.Context, t task.Task) (json.RawMessage, error) {
	p, err := tasks.DecodeAs[tasks.RecalculateWebinarStatisticPayload](t)
	if err != nil {
		return nil, err
	}

	matched, err := s.Recalculate(ctx, p.WebinarID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int{"matched": matched})
}

// WebinarStatus returns the platform's session document as is. It is nil
// when the webinar has no session, the platform cannot be reached, or the
// platform has no status for it; the last two are logged differently.
func (s *Statistics) WebinarStatus(ctx context.Context, webinarID int64) (json.RawMessage, error) {
	c, err := s.conventions.GetByID(ctx, webinarID)
	if err != nil {
		return nil, err
	}

	info, ok := s.sessionInfo(ctx, c)
	if !ok {
		return nil, nil
	}
	return info.Raw, nil
}

// IsFinished reports whether the platform marked the session as stopped.
func (s *Statistics) IsFinished(ctx context.Context, webinarID int64) (bool, error) {
	c, err := s.conventions.GetByID(ctx, webinarID)
	if err != nil {
		return false, err
	}

	info, ok := s.sessionInfo(ctx, c)
	if !ok {
		return false, nil
	}
	return info.Status == convention.PlatformStatusFinished, nil
}

// WebinarsBetween lists online conventions starting in [from, to).
func (s *Statistics) WebinarsBetween(ctx context.Context, from, to time.Time) ([]convention.Convention, error) {
	return s.conventions.ListWebinarsBetween(ctx, from, to)
}

func (s *Statistics) sessionInfo(ctx context.Context, c convention.Convention) (platform.SessionInfo, bool) {
	props, err := c.PlatformProperties()
	if err != nil {
		return platform.SessionInfo{}, false
	}

	si, err := s.platform.SessionInfo(ctx, props.SessionID)
	if err != nil {
		s.log.WarnContext(ctx, "webinar.status.platform_unreachable",
			"webinar_id", c.ID,
			"session_id", props.SessionID,
			"err", err,
		)
		return platform.SessionInfo{}, false
	}

	if isEmptyDocument(si.Raw) {
		s.log.InfoContext(ctx, "webinar.status.no_status", "webinar_id", c.ID, "session_id", props.SessionID)
		return platform.SessionInfo{}, false
	}
	return si, true
}

func isEmptyDocument(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return true
	}
	switch d := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(d) == 0
	case []any:
		return len(d) == 0
	}
	return false
}
