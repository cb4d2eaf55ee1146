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
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/tasks"
)

const SkippedNoExternalSession = "no_external_session"

// RegistrationResult is stored as the registration task's result.
type RegistrationResult struct {
	Skipped     string   `json:"skipped,omitempty"`
	AccessURL   string   `json:"accessUrl,omitempty"`
	ReminderIDs []string `json:"reminderIds,omitempty"`
}

// RegistrationState is what a participant sees while their platform
// registration is pending or done.
type RegistrationState struct {
	TaskID      *string      `json:"taskId"`
	Status      *task.Status `json:"status"`
	Error       *string      `json:"error,omitempty"`
	PersonalURL *string      `json:"personalUrl"`
	Failed      bool         `json:"failed"`
	// Active is true from an hour before the start until five hours after
	// the finish, while the personal link is worth showing.
	Active bool `json:"active"`
}

type RegistrationDeps struct {
	Conventions    ConventionStore
	Participations ParticipationStore
	Tasks          TaskReader
	Submitter      TaskSubmitter
	Platform       Platform
	Directory      Directory
	Reminders      ReminderScheduler
	Log            *slog.Logger
}

type Registrations struct {
	conventions    ConventionStore
	participations ParticipationStore
	tasks          TaskReader
	submitter      TaskSubmitter
	factory        *tasks.Factory
	platform       Platform
	directory      Directory
	reminders      ReminderScheduler
	log            *slog.Logger
	now            func() time.Time
}

func NewRegistrations(d RegistrationDeps) *Registrations {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Registrations{
		conventions:    d.Conventions,
		participations: d.Participations,
		tasks:          d.Tasks,
		submitter:      d.Submitter,
		factory:        tasks.NewFactory(),
		platform:       d.Platform,
		directory:      d.Directory,
		reminders:      d.Reminders,
		log:            d.Log,
		now:            time.Now,
	}
}

// CreateRegistrationTask queues the platform registration of a participant.
// The participation row must exist and be enabled; it gets a back-reference
// to the task before the task is enqueued.
func (s *Registrations) CreateRegistrationTask(ctx context.Context, actorID *string, userID, webinarID int64) (task.Task, error) {
	t, err := s.factory.NewUserWebinarRegistration(actorID, userID, webinarID)
	if err != nil {
		return task.Task{}, err
	}

	if err := s.requireParticipant(ctx, webinarID, userID); err != nil {
		return task.Task{}, err
	}

	return s.submitter.Submit(ctx, t, func(ctx context.Context, created task.Task) error {
		if err := s.participations.SetRegistrationTask(ctx, webinarID, userID, created.ID); err != nil {
			return fmt.Errorf("link registration task: %w", err)
		}
		return nil
	})
}

// HandleRegistration is the executor handler for user_webinar_registration.
func (s *Registrations) HandleRegistration(ctx context.Context, t task.Task) (json.RawMessage, error) {
	p, err := tasks.DecodeAs[tasks.UserWebinarRegistrationPayload](t)
	if err != nil {
		return nil, err
	}

	// access may have been revoked while the task was queued
	if err := s.requireParticipant(ctx, p.WebinarID, p.UserID); err != nil {
		return nil, err
	}

	u, err := s.directory.UserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", p.UserID, err)
	}

	c, err := s.conventions.GetByID(ctx, p.WebinarID)
	if err != nil {
		return nil, fmt.Errorf("load webinar %d: %w", p.WebinarID, err)
	}

	res, err := s.Register(ctx, c, u)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// Register signs u up on the platform session of c, stores the personal link
// and schedules the reminders. A webinar without a platform session is
// skipped, not failed. Reminders are only scheduled after the link is stored.
func (s *Registrations) Register(ctx context.Context, c convention.Convention, u user.User) (RegistrationResult, error) {
	props, err := c.PlatformProperties()
	if errors.Is(err, convention.ErrNoExternalSession) {
		s.log.InfoContext(ctx, "registration.skipped",
			"webinar_id", c.ID,
			"user_id", u.ID,
			"reason", SkippedNoExternalSession,
		)
		return RegistrationResult{Skipped: SkippedNoExternalSession}, nil
	}
	if err != nil {
		return RegistrationResult{}, err
	}

	reg, err := s.platform.Register(ctx, props.SessionID, u.Email)
	if err != nil {
		return RegistrationResult{}, err
	}

	if err := s.participations.SetAccessURL(ctx, c.ID, u.ID, reg.Link); err != nil {
		return RegistrationResult{}, fmt.Errorf("store access url: %w", err)
	}

	ids, err := s.reminders.ScheduleWebinarReminders(ctx, c, u, reg.Link)
	if err != nil {
		return RegistrationResult{}, err
	}

	s.log.InfoContext(ctx, "registration.completed",
		"webinar_id", c.ID,
		"user_id", u.ID,
		"reminders", len(ids),
	)
	return RegistrationResult{AccessURL: reg.Link, ReminderIDs: ids}, nil
}

// RegistrationStatus returns the status of the task linked to the
// participation, or nil when no registration was requested.
func (s *Registrations) RegistrationStatus(ctx context.Context, webinarID, userID int64) (*task.Task, error) {
	p, err := s.participations.Get(ctx, webinarID, userID)
	if err != nil {
		return nil, err
	}
	if p.RegistrationTaskID == nil {
		return nil, nil
	}

	t, err := s.tasks.GetByID(ctx, *p.RegistrationTaskID)
	if errors.Is(err, task.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// requireParticipant treats a disabled row as no participation.
func (s *Registrations) requireParticipant(ctx context.Context, webinarID, userID int64) error {
	p, err := s.participations.Get(ctx, webinarID, userID)
	if err != nil {
		return err
	}
	if !p.Enabled {
		return fmt.Errorf("%w: participation of user %d in webinar %d is disabled", participation.ErrNotFound, userID, webinarID)
	}
	return nil
}

// PersonalURL is the participant's personal platform link, nil if the user
// is not an enabled participant or is not registered yet.
func (s *Registrations) PersonalURL(ctx context.Context, webinarID, userID int64) (*string, error) {
	p, err := s.participations.Get(ctx, webinarID, userID)
	if errors.Is(err, participation.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, nil
	}
	return p.PersonalAccessURL, nil
}

// RegistrationFailed reports an enabled participant without a personal link.
func (s *Registrations) RegistrationFailed(ctx context.Context, webinarID, userID int64) (bool, error) {
	p, err := s.participations.Get(ctx, webinarID, userID)
	if errors.Is(err, participation.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Enabled && (p.PersonalAccessURL == nil || *p.PersonalAccessURL == ""), nil
}

// State combines the three lookups for the participant endpoint.
func (s *Registrations) State(ctx context.Context, webinarID, userID int64) (RegistrationState, error) {
	p, err := s.participations.Get(ctx, webinarID, userID)
	if err != nil {
		return RegistrationState{}, err
	}

	c, err := s.conventions.GetByID(ctx, webinarID)
	if err != nil {
		return RegistrationState{}, err
	}

	st := RegistrationState{
		Failed: p.Enabled && (p.PersonalAccessURL == nil || *p.PersonalAccessURL == ""),
		Active: c.IsActive(s.now()),
	}
	if p.Enabled {
		st.PersonalURL = p.PersonalAccessURL
	}

	t, err := s.RegistrationStatus(ctx, webinarID, userID)
	if err != nil {
		return RegistrationState{}, err
	}
	if t != nil {
		id, status := t.ID, t.Status
		st.TaskID, st.Status, st.Error = &id, &status, t.Error
	}
	return st, nil
}
