package domain

import "time"

// OtpPurpose scopes a one-time code to the flow it was issued for. A code
// minted for one purpose can never be redeemed for another.
type OtpPurpose string

const (
	PurposeEmailVerification OtpPurpose = "email_verification"
	PurposePasswordReset     OtpPurpose = "password_reset"
)

// OtpSession is one issued one-time code. Only the code's fingerprint is
// stored; the plaintext goes straight to the notification sink and is never
// persisted or logged.
//
// A session is usable only while !Used, before ExpiresAt, and while Attempts
// is below the configured maximum. Used is set on successful verification and
// when a resend supersedes the session.
type OtpSession struct {
	ID         string
	IdentityID string
	CodeHash   string
	Purpose    OtpPurpose
	ExpiresAt  time.Time
	Attempts   int
	Verified   bool
	Used       bool
	CreatedAt  time.Time
	VerifiedAt *time.Time
}
