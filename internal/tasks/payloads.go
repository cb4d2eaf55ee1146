package tasks

import "github.com/geocoder89/conventionhub/internal/domain/participation"

// UserWebinarRegistrationPayload registers one user on the hosting platform.
// Keep it ID-based; the handler loads the user and the webinar itself.
type UserWebinarRegistrationPayload struct {
	UserID    int64 `json:"userId"`
	WebinarID int64 `json:"webinarId"`
}

// ExportWebinarVisitorsPayload carries the already listed visitor rows so the
// artifact reflects what the caller saw when requesting the export.
type ExportWebinarVisitorsPayload struct {
	WebinarID   int64                      `json:"webinarId"`
	FileName    string                     `json:"fileName"`
	RequestedBy string                     `json:"requestedBy"`
	Rows        []participation.VisitorRow `json:"rows"`
}

type RecalculateWebinarStatisticPayload struct {
	WebinarID int64 `json:"webinarId"`
}
