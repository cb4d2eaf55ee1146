package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/notifications"
	"github.com/google/uuid"
)

const StartFormat = "02-01-2006 15:04"

// Offsets are how long before the webinar start each reminder goes out.
var Offsets = []time.Duration{1 * time.Hour, 24 * time.Hour}

var ErrNotFound = errors.New("reminder not found")

type Entry struct {
	ID      string                        `json:"id"`
	DueAt   time.Time                     `json:"dueAt"`
	Payload notifications.WebinarReminder `json:"payload"`
	// Attempts counts failed provider sends.
	Attempts int `json:"attempts,omitempty"`
}

// Store keeps pending entries until they are due.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Remove(ctx context.Context, id string) (bool, error)
	// ClaimDue removes and returns up to limit entries with DueAt <= now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error)
}

type Config struct {
	AppURL   string
	Location *time.Location
}

type Scheduler struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

func NewScheduler(store Store, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{store: store, cfg: cfg, log: log}
}

func (s *Scheduler) Schedule(ctx context.Context, dueAt time.Time, payload notifications.WebinarReminder) (string, error) {
	e := Entry{ID: uuid.NewString(), DueAt: dueAt.UTC(), Payload: payload}

	if err := s.store.Add(ctx, e); err != nil {
		return "", fmt.Errorf("schedule reminder: %w", err)
	}

	s.log.InfoContext(ctx, "reminder.scheduled",
		"reminder_id", e.ID,
		"convention_id", payload.ConventionID,
		"due_at", e.DueAt,
	)
	return e.ID, nil
}

// Cancel withdraws a pending reminder. Nothing calls it when a webinar is
// moved or cancelled yet; already scheduled reminders still go out then.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	ok, err := s.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	s.log.InfoContext(ctx, "reminder.cancelled", "reminder_id", id)
	return nil
}

// ScheduleWebinarReminders schedules one reminder per offset before the
// webinar start and returns their ids.
func (s *Scheduler) ScheduleWebinarReminders(ctx context.Context, c convention.Convention, u user.User, accessURL string) ([]string, error) {
	ids := make([]string, 0, len(Offsets))

	for _, off := range Offsets {
		p := s.Payload(c, u, accessURL)
		p.HoursBefore = int(off / time.Hour)

		id, err := s.Schedule(ctx, c.StartAt.Add(-off), p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Scheduler) Payload(c convention.Convention, u user.User, accessURL string) notifications.WebinarReminder {
	return notifications.WebinarReminder{
		Email:             u.Email,
		FullName:          u.FullName(),
		ConventionID:      c.ID,
		EventName:         c.Name,
		StartAt:           c.StartAt,
		StartFormatted:    c.StartAt.In(s.cfg.Location).Format(StartFormat),
		EventLink:         s.EventLink(c.ID),
		PersonalAccessURL: accessURL,
	}
}

func (s *Scheduler) EventLink(conventionID int64) string {
	return s.cfg.AppURL + "/conventions/" + strconv.FormatInt(conventionID, 10)
}
