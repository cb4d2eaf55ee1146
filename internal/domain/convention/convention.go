package convention

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

const (
	// actions (reminders, access links) start this long before the webinar
	StartingSoonWindow = 1 * time.Hour
	FinishGraceWindow  = 5 * time.Hour

	// platform session status reported once the webinar is over
	PlatformStatusFinished = "STOP"
)

var (
	ErrNotFound          = errors.New("convention not found")
	ErrNoExternalSession = errors.New("convention has no external webinar session")
)

// the admin pastes the platform's edit url into the convention meta:
// https://host/.../event/{eventId}/{sessionId}/edit
var webinarURLPattern = regexp.MustCompile(`(.*event/)(\d*)(/)(\d*)(/edit)`)

type Meta struct {
	PreviewUUID       *string  `json:"preview_uuid,omitempty"`
	Announcement      *string  `json:"announcement,omitempty"`
	Program           *string  `json:"program,omitempty"`
	Organizers        []string `json:"organizers,omitempty"`
	AccreditationInfo *string  `json:"accreditation_info,omitempty"`
	NMOCoins          int      `json:"nmo_coins"`
	WebinarURL        *string  `json:"webinar_url,omitempty"`
	WebinarVideoURL   *string  `json:"webinar_video_url,omitempty"`
}

type Convention struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Location  *string   `json:"location,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	StartAt   time.Time `json:"startAt"`
	FinishAt  time.Time `json:"finishAt"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlatformProperties identifies the webinar on the hosting platform.
type PlatformProperties struct {
	EventID   int64 `json:"eventId"`
	SessionID int64 `json:"sessionId"`
}

func ParseWebinarURL(raw string) (PlatformProperties, error) {
	m := webinarURLPattern.FindStringSubmatch(raw)
	if len(m) < 6 {
		return PlatformProperties{}, ErrNoExternalSession
	}

	eventID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return PlatformProperties{}, ErrNoExternalSession
	}

	sessionID, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return PlatformProperties{}, ErrNoExternalSession
	}

	return PlatformProperties{EventID: eventID, SessionID: sessionID}, nil
}

func (c Convention) PlatformProperties() (PlatformProperties, error) {
	if c.Meta.WebinarURL == nil || *c.Meta.WebinarURL == "" {
		return PlatformProperties{}, ErrNoExternalSession
	}
	return ParseWebinarURL(*c.Meta.WebinarURL)
}

// IsActive reports whether now falls in [start-1h, finish+5h].
func (c Convention) IsActive(now time.Time) bool {
	from := c.StartAt.Add(-StartingSoonWindow)
	to := c.FinishAt.Add(FinishGraceWindow)

	return !now.Before(from) && !now.After(to)
}

func (c Convention) StartDate() string {
	return c.StartAt.Format("2006-01-02")
}

func (c Convention) ExportFileName() string {
	return "webinar_" + strconv.FormatInt(c.ID, 10) + "_" + c.StartDate()
}
