package participation

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("participation not found")

// Participation joins a user to a convention. Identity is (ConventionID, UserID).
type Participation struct {
	ConventionID       int64     `json:"conventionId"`
	UserID             int64     `json:"userId"`
	Enabled            bool      `json:"enabled"`
	PersonalAccessURL  *string   `json:"personalAccessUrl,omitempty"`
	RegistrationTaskID *string   `json:"registrationTaskId,omitempty"`
	Stats              *Stats    `json:"stats,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Stats are the reconciled attendance fields. They are written together and
// never touch Enabled, PersonalAccessURL or RegistrationTaskID.
type Stats struct {
	ConfirmCount       int        `json:"confirmCount"`
	ControlCount       int        `json:"controlCount"`
	DurationMinutes    int        `json:"durationMinutes"`
	TestPassed         *bool      `json:"testPassed"`
	CorrectAnswerCount *int       `json:"correctAnswerCount"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// VisitorRow is the flat export/listing record.
type VisitorRow struct {
	UserID             int64  `json:"userId"`
	Email              string `json:"email"`
	FullName           string `json:"fullname"`
	DurationMinutes    int    `json:"duration"`
	ConfirmCount       int    `json:"confirmCount"`
	ControlCount       int    `json:"controlCount"`
	CorrectAnswerCount *int   `json:"correctlyTestAnswers"`
	TestPassed         *bool  `json:"testIsPassed"`
	WorkPlace          string `json:"workPlace"`
	Speciality         string `json:"speciality"`
	Region             string `json:"region"`
}

// Visitor is an enabled participant whose stats have been reconciled, as read
// from the store before demographic enrichment.
type Visitor struct {
	UserID int64
	Email  string
	Stats  Stats
}
