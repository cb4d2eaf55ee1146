package user

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("user not found")

type Profile struct {
	WorkPlace    string `json:"workPlace,omitempty"`
	SpecialityID int    `json:"specialityId,omitempty"`
	RegionID     int    `json:"regionId,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
}

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	MiddleName string    `json:"middleName,omitempty"`
	Role       string    `json:"role"`
	Profile    Profile   `json:"profile"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
