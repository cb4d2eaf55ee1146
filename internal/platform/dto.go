package platform

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Int accepts a JSON number or a numeric string; anything else decodes to 0.
type Int int64

func (n *Int) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}

	if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*n = Int(v)
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil {
		*n = Int(f)
		return nil
	}

	*n = 0
	return nil
}

// Value converts a nullable count for storage; nil stays nil.
func (n *Int) Value() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

type SessionFile struct {
	ID       Int    `json:"id"`
	FileType string `json:"fileType"`
}

// SessionInfo is GET /eventsessions/{id}. Raw keeps the full document for
// the status endpoint, which returns it as is.
type SessionInfo struct {
	Status string          `json:"status"`
	Files  []SessionFile   `json:"files"`
	Raw    json.RawMessage `json:"-"`
}

// TestID is the id of the last attached file of type "test".
func (s SessionInfo) TestID() (int64, bool) {
	var (
		id    int64
		found bool
	)
	for _, f := range s.Files {
		if f.FileType == "test" {
			id, found = int64(f.ID), true
		}
	}
	return id, found
}

type Registration struct {
	Link string `json:"link"`
}

type AttentionControl struct {
	ConfirmedCount Int `json:"confirmedCount"`
	ShownCount     Int `json:"shownCount"`
}

type Connection struct {
	Duration Int `json:"duration"` // seconds
}

type EventSession struct {
	EventID          Int               `json:"eventId"`
	AttentionControl *AttentionControl `json:"attentionControl"`
	Connections      []Connection      `json:"connections"`
}

// VisitorStat is one entry of GET /stats/users.
type VisitorStat struct {
	Email         *string        `json:"email"`
	EventSessions []EventSession `json:"eventSessions"`
}

type TestUserResult struct {
	Email *string `json:"email"`
	// null stays nil; numbers and numeric strings decode like Int.
	CorrectlyAnsweredQuestions *Int  `json:"correctlyAnsweredQuestions"`
	IsPassed                   *bool `json:"isPassed"`
}

type TestResults struct {
	Users []TestUserResult `json:"users"`
}
