package domain

import "time"

// Credential binds a password hash to exactly one identity. The email is
// duplicated from the identity for login lookup and kept in sync with it.
type Credential struct {
	ID           string
	IdentityID   string
	Email        string
	PasswordHash string // argon2id encoded, never the plaintext
	Verified     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
