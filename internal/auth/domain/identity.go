package domain

import (
	"strings"
	"time"
)

// Identity is a marketplace user as seen by the auth subsystem. It is created
// exactly once during registration; profile mutation lives elsewhere.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Active    bool
	Role      string // "user" unless promoted out of band
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the name used when addressing the user in email,
// falling back to the email address when no name was captured.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return i.Email
	}
	return name
}
