package webinar

import (
	"context"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/platform"
)

type ConventionStore interface {
	GetByID(ctx context.Context, id int64) (convention.Convention, error)
	ListWebinarsBetween(ctx context.Context, from, to time.Time) ([]convention.Convention, error)
}

type ParticipationStore interface {
	Get(ctx context.Context, conventionID, userID int64) (participation.Participation, error)
	IsEnabledParticipant(ctx context.Context, conventionID, userID int64) (bool, error)
	SetAccessURL(ctx context.Context, conventionID, userID int64, url string) error
	SetRegistrationTask(ctx context.Context, conventionID, userID int64, taskID string) error
	UpsertStats(ctx context.Context, conventionID, userID int64, s participation.Stats) error
	ListVisitors(ctx context.Context, conventionID int64) ([]participation.Visitor, error)
}

type TaskReader interface {
	GetByID(ctx context.Context, id string) (task.Task, error)
}

type TaskSubmitter interface {
	Submit(ctx context.Context, t task.Task, onCreated ...func(ctx context.Context, t task.Task) error) (task.Task, error)
}

// Platform is the subset of the hosting platform API used here; see
// platform.Client.
type Platform interface {
	SessionInfo(ctx context.Context, sessionID int64) (platform.SessionInfo, error)
	TestID(ctx context.Context, sessionID int64) (int64, bool)
	Register(ctx context.Context, sessionID int64, email string) (platform.Registration, error)
	VisitorStats(ctx context.Context, eventID int64, startDate string) ([]platform.VisitorStat, error)
	TestResults(ctx context.Context, testID int64) (platform.TestResults, error)
}

type Directory interface {
	UserByEmail(ctx context.Context, email string) (user.User, error)
	UserByID(ctx context.Context, id int64) (user.User, error)
	SpecialityName(ctx context.Context, id int) (string, error)
	RegionName(ctx context.Context, countryCode string, id int) (string, error)
}

type ReminderScheduler interface {
	ScheduleWebinarReminders(ctx context.Context, c convention.Convention, u user.User, accessURL string) ([]string, error)
}
