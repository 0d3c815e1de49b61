package store

import (
	"context"
	"errors"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Each table is mutated only through its owning service; the
// sub-repositories exist to keep that ownership visible and testable.
type Store interface {
	Identities() Identities
	Credentials() Credentials
	OtpSessions() OtpSessions
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. This is the unit-of-work handed to
	// the orchestrator for multi-table writes such as registration.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	// CreateIdentity inserts a new identity (id is provided by the app via ULID).
	CreateIdentity(ctx context.Context, i domain.Identity) error

	// GetIdentityByID returns an identity by id.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByEmail is used during registration checks and forgot-password.
	GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)
}

type Credentials interface {
	// CreateCredential inserts the single credential row for an identity.
	CreateCredential(ctx context.Context, c domain.Credential) error

	// GetCredentialByEmail is the login lookup path.
	GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error)

	// GetCredentialByIdentity fetches the credential owned by an identity.
	GetCredentialByIdentity(ctx context.Context, identityID string) (domain.Credential, error)

	// UpdatePasswordHash overwrites the hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, identityID string, newHash string) error

	// SetVerified flips the credential's verification flag.
	SetVerified(ctx context.Context, identityID string, verified bool) error

	// TouchLastLogin stamps last_login with the current time.
	TouchLastLogin(ctx context.Context, identityID string) error
}

type OtpSessions interface {
	// CreateOtpSession stores a freshly issued one-time-code session.
	CreateOtpSession(ctx context.Context, s domain.OtpSession) error

	// GetOtpSession returns a session by id regardless of purpose.
	GetOtpSession(ctx context.Context, id string) (domain.OtpSession, error)

	// GetOtpSessionForPurpose returns a session matching both id and purpose.
	GetOtpSessionForPurpose(ctx context.Context, id string, purpose domain.OtpPurpose) (domain.OtpSession, error)

	// GetLatestOtpSession returns the most recently issued session for an
	// identity and purpose. Resend supersedes this session.
	GetLatestOtpSession(ctx context.Context, identityID string, purpose domain.OtpPurpose) (domain.OtpSession, error)

	// IncrementOtpAttempts bumps the failed-attempt counter and returns the
	// new count. The counter is persisted even on failure so brute force
	// stays bounded.
	IncrementOtpAttempts(ctx context.Context, id string) (int, error)

	// MarkOtpUsed terminates a session without verifying it (supersede).
	MarkOtpUsed(ctx context.Context, id string) error

	// MarkOtpVerified records a successful verification: verified, used, and
	// verified_at are all set together.
	MarkOtpVerified(ctx context.Context, id string) error

	// HasVerifiedOtp reports whether the identity has at least one session of
	// the given purpose that completed verification.
	HasVerifiedOtp(ctx context.Context, identityID string, purpose domain.OtpPurpose) (bool, error)

	// DeleteExpiredOtpSessions is housekeeping for rows that are already
	// terminal; expiry decisions are always made at use time.
	DeleteExpiredOtpSessions(ctx context.Context) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken marks one token revoked with the given reason.
	// replacedByHash is recorded only for rotation ("replaced").
	RevokeRefreshToken(ctx context.Context, hash, reason, replacedByHash string) error

	// RevokeTokenFamily revokes every non-revoked token in a family. This is
	// the reuse-detection response and must hit all descendants of a login.
	RevokeTokenFamily(ctx context.Context, family, reason string) error

	// RevokeAllIdentityRefreshTokens revokes every non-revoked token for an
	// identity (logout-everywhere, password reset).
	RevokeAllIdentityRefreshTokens(ctx context.Context, identityID, reason string) error

	// DeleteExpiredRefreshTokens is optional housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
