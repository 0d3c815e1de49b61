package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/notify"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/pkg/cryptox"
	"github.com/chapatuventa/marketplace/pkg/idx"

	"golang.org/x/time/rate"
)

var (
	ErrSessionNotFound  = errors.New("verification session not found")
	ErrSessionUsed      = errors.New("verification session already used")
	ErrSessionExpired   = errors.New("verification session expired")
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrInvalidCode      = errors.New("invalid verification code")
	ErrAlreadyVerified  = errors.New("email already verified")
	ErrIssueRateLimited = errors.New("verification code requests rate limited")
)

// OtpConfig tunes one-time-code issuance and verification.
type OtpConfig struct {
	// CodeLength is the number of digits in issued codes.
	CodeLength int

	// TTL is how long a code stays redeemable after issuance.
	TTL time.Duration

	// MaxAttempts caps wrong-code guesses per session.
	MaxAttempts int

	// IssueInterval and IssueBurst bound how often a single identity can
	// request codes for one purpose.
	IssueInterval time.Duration
	IssueBurst    int
}

func DefaultOtpConfig() OtpConfig {
	return OtpConfig{
		CodeLength:    6,
		TTL:           5 * time.Minute,
		MaxAttempts:   3,
		IssueInterval: time.Minute,
		IssueBurst:    3,
	}
}

// OtpService issues and verifies one-time codes for email verification and
// password reset. Codes are stored hashed; the plaintext exists only for the
// duration of delivery.
type OtpService struct {
	Store    store.Store
	Notifier notify.Notifier
	Config   OtpConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Issue creates a new code session for the identity and dispatches the code
// through the notifier. It returns the session id the caller hands back to
// Verify.
func (s *OtpService) Issue(ctx context.Context, identity domain.Identity, purpose domain.OtpPurpose) (string, error) {
	if !s.allowIssue(identity.ID, purpose) {
		return "", ErrIssueRateLimited
	}

	code, err := cryptox.GenerateNumericCode(s.Config.CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	session := domain.OtpSession{
		ID:         idx.New().String(),
		IdentityID: identity.ID,
		CodeHash:   cryptox.FingerprintToken(code),
		Purpose:    purpose,
		ExpiresAt:  time.Now().UTC().Add(s.Config.TTL),
	}

	if err := s.Store.OtpSessions().CreateOtpSession(ctx, session); err != nil {
		return "", fmt.Errorf("create otp session: %w", err)
	}

	if err := s.deliver(ctx, identity, purpose, code); err != nil {
		// The session stays valid; the user can ask for a resend.
		slog.ErrorContext(ctx, "failed to deliver verification code",
			"identity_id", identity.ID, "purpose", string(purpose), "error", err)
	}

	slog.InfoContext(ctx, "verification code issued",
		"session_id", session.ID, "identity_id", identity.ID, "purpose", string(purpose))

	return session.ID, nil
}

// Verify redeems a code against a session. On success the session becomes
// verified and used in one step, so a code can never be redeemed twice. On a
// wrong code the attempt counter is persisted before returning.
func (s *OtpService) Verify(ctx context.Context, sessionID string, purpose domain.OtpPurpose, code string) (string, error) {
	session, err := s.Store.OtpSessions().GetOtpSessionForPurpose(ctx, sessionID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("lookup otp session: %w", err)
	}

	if session.Used {
		return "", ErrSessionUsed
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return "", ErrSessionExpired
	}
	if session.Attempts >= s.Config.MaxAttempts {
		return "", ErrAttemptsExceeded
	}

	if subtle.ConstantTimeCompare([]byte(cryptox.FingerprintToken(code)), []byte(session.CodeHash)) != 1 {
		attempts, incErr := s.Store.OtpSessions().IncrementOtpAttempts(ctx, sessionID)
		if incErr != nil {
			return "", fmt.Errorf("record failed attempt: %w", incErr)
		}
		slog.WarnContext(ctx, "wrong verification code",
			"session_id", sessionID, "attempts", attempts)
		return "", ErrInvalidCode
	}

	if err := s.Store.OtpSessions().MarkOtpVerified(ctx, sessionID); err != nil {
		return "", fmt.Errorf("mark otp verified: %w", err)
	}

	return session.IdentityID, nil
}

// Resend supersedes an existing pending session and issues a fresh code for
// the same identity and purpose. The superseded code stops working the moment
// the new one exists. A session that was already consumed cannot be resent.
func (s *OtpService) Resend(ctx context.Context, sessionID string, purpose domain.OtpPurpose) (string, error) {
	prior, err := s.Store.OtpSessions().GetOtpSessionForPurpose(ctx, sessionID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("lookup otp session: %w", err)
	}

	if purpose == domain.PurposeEmailVerification {
		verified, err := s.IsEmailVerified(ctx, prior.IdentityID)
		if err != nil {
			return "", err
		}
		if verified {
			return "", ErrAlreadyVerified
		}
	}

	if prior.Used {
		return "", ErrSessionUsed
	}

	if err := s.Store.OtpSessions().MarkOtpUsed(ctx, prior.ID); err != nil {
		return "", fmt.Errorf("supersede otp session: %w", err)
	}

	identity, err := s.Store.Identities().GetIdentityByID(ctx, prior.IdentityID)
	if err != nil {
		return "", fmt.Errorf("lookup identity: %w", err)
	}

	return s.Issue(ctx, identity, purpose)
}

// Reissue supersedes the identity's latest pending session for the purpose,
// if one exists, and issues a new code. It serves flows keyed on the account
// rather than a session, such as forgot-password.
func (s *OtpService) Reissue(ctx context.Context, identity domain.Identity, purpose domain.OtpPurpose) (string, error) {
	prior, err := s.Store.OtpSessions().GetLatestOtpSession(ctx, identity.ID, purpose)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Nothing to supersede.
	case err != nil:
		return "", fmt.Errorf("lookup otp session: %w", err)
	case !prior.Used:
		if err := s.Store.OtpSessions().MarkOtpUsed(ctx, prior.ID); err != nil {
			return "", fmt.Errorf("supersede otp session: %w", err)
		}
	}

	return s.Issue(ctx, identity, purpose)
}

// IsEmailVerified reports whether the identity ever completed email
// verification.
func (s *OtpService) IsEmailVerified(ctx context.Context, identityID string) (bool, error) {
	ok, err := s.Store.OtpSessions().HasVerifiedOtp(ctx, identityID, domain.PurposeEmailVerification)
	if err != nil {
		return false, fmt.Errorf("check email verification: %w", err)
	}
	return ok, nil
}

// RecordFailedAttempt burns one attempt on a session without touching its
// other state. Used when a verified reset code leads to a rejected password.
func (s *OtpService) RecordFailedAttempt(ctx context.Context, sessionID string) {
	if _, err := s.Store.OtpSessions().IncrementOtpAttempts(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "failed to record otp attempt", "session_id", sessionID, "error", err)
	}
}

// BackfillEmailVerification records email verification for an identity that
// proved ownership through another flow, such as a password reset code.
func (s *OtpService) BackfillEmailVerification(ctx context.Context, identityID string) error {
	verified, err := s.IsEmailVerified(ctx, identityID)
	if err != nil {
		return err
	}
	if verified {
		return nil
	}

	now := time.Now().UTC()
	session := domain.OtpSession{
		ID:         idx.New().String(),
		IdentityID: identityID,
		CodeHash:   "",
		Purpose:    domain.PurposeEmailVerification,
		ExpiresAt:  now,
		Verified:   true,
		Used:       true,
		CreatedAt:  now,
		VerifiedAt: &now,
	}
	if err := s.Store.OtpSessions().CreateOtpSession(ctx, session); err != nil {
		return fmt.Errorf("backfill email verification: %w", err)
	}
	return nil
}

func (s *OtpService) deliver(ctx context.Context, identity domain.Identity, purpose domain.OtpPurpose, code string) error {
	switch purpose {
	case domain.PurposePasswordReset:
		return s.Notifier.SendPasswordResetEmail(ctx, identity.Email, identity.DisplayName(), code)
	default:
		return s.Notifier.SendVerificationEmail(ctx, identity.Email, identity.DisplayName(), code)
	}
}

func (s *OtpService) allowIssue(identityID string, purpose domain.OtpPurpose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limiters == nil {
		s.limiters = make(map[string]*rate.Limiter)
	}

	key := identityID + "/" + string(purpose)
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(s.Config.IssueInterval), s.Config.IssueBurst)
		s.limiters[key] = limiter
	}
	return limiter.Allow()
}
