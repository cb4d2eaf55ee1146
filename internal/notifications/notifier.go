package notifications

import (
	"context"
	"time"
)

// WebinarReminder is what a participant receives before a webinar starts.
type WebinarReminder struct {
	Email             string    `json:"email"`
	FullName          string    `json:"fullName"`
	ConventionID      int64     `json:"conventionId"`
	EventName         string    `json:"eventName"`
	StartAt           time.Time `json:"startAt"`
	StartFormatted    string    `json:"start"`
	EventLink         string    `json:"eventLink"`
	PersonalAccessURL string    `json:"personalAccessUrl"`
	HoursBefore       int       `json:"hoursBefore"`
}

type Notifier interface {
	SendWebinarReminder(ctx context.Context, r WebinarReminder) error
}
