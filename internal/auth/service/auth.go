package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/pkg/idx"
	"github.com/chapatuventa/marketplace/pkg/jwtx"
)

var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrEmailNotFound      = errors.New("email not found")
	ErrSamePassword       = errors.New("new password must differ from the current one")
)

// AuthService orchestrates the account flows. It owns no table of its own;
// every write goes through the vault, the otp engine, or the token ledger.
type AuthService struct {
	Store  store.Store
	Vault  *CredentialService
	Otp    *OtpService
	Ledger *LedgerService
	Signer *jwtx.Signer
}

// Profile is the read model returned to authenticated callers.
type Profile struct {
	Identity      domain.Identity `json:"identity"`
	EmailVerified bool            `json:"email_verified"`
	LastLogin     *time.Time      `json:"last_login,omitempty"`
}

// Register creates an identity and its credential atomically, then kicks off
// email verification. The returned session id is what VerifyEmail expects.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (domain.Identity, string, error) {
	identity := domain.Identity{
		ID:        idx.New().String(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Active:    true,
		Role:      "user",
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().CreateIdentity(ctx, identity); err != nil {
			return err
		}
		_, err := s.Vault.CreateCredential(ctx, tx, identity.ID, email, password)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) || errors.Is(err, ErrDuplicateCredential) {
			return domain.Identity{}, "", ErrEmailAlreadyExists
		}
		return domain.Identity{}, "", fmt.Errorf("register: %w", err)
	}

	slog.InfoContext(ctx, "identity registered", "identity_id", identity.ID)

	sessionID, err := s.Otp.Issue(ctx, identity, domain.PurposeEmailVerification)
	if err != nil {
		// The identity stays committed, but without a session id the caller
		// has nothing to verify or resend against, so this is a failure.
		return identity, "", fmt.Errorf("issue verification code: %w", err)
	}

	return identity, sessionID, nil
}

// Login verifies the password, requires a verified email, and mints a fresh
// token pair in a brand new refresh family.
func (s *AuthService) Login(ctx context.Context, email, password string, client domain.ClientContext) (domain.Identity, domain.TokenPair, error) {
	identity, ok, err := s.Vault.Verify(ctx, email, password)
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}
	if !ok || !identity.Active {
		return domain.Identity{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	verified, err := s.Otp.IsEmailVerified(ctx, identity.ID)
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}
	if !verified {
		return domain.Identity{}, domain.TokenPair{}, ErrEmailNotVerified
	}

	pair, err := s.mintPair(ctx, identity, client)
	if err != nil {
		return domain.Identity{}, domain.TokenPair{}, err
	}

	s.Vault.TouchLastLogin(ctx, identity.ID)
	slog.InfoContext(ctx, "login succeeded", "identity_id", identity.ID)

	return identity, pair, nil
}

// Refresh rotates the refresh token and signs a new access token for its
// owner.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client domain.ClientContext) (domain.TokenPair, error) {
	next, identityID, err := s.Ledger.Rotate(ctx, refreshToken, client)
	if err != nil {
		return domain.TokenPair{}, err
	}

	identity, err := s.Store.Identities().GetIdentityByID(ctx, identityID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("lookup identity: %w", err)
	}

	access, err := s.Signer.Sign(identity.ID, identity.Email, identity.Role, time.Now())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: next,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Signer.TTL().Seconds()),
	}, nil
}

// VerifyEmail redeems a verification code and flips the credential's
// verified flag.
func (s *AuthService) VerifyEmail(ctx context.Context, sessionID, code string) error {
	identityID, err := s.Otp.Verify(ctx, sessionID, domain.PurposeEmailVerification, code)
	if err != nil {
		return err
	}
	if err := s.Vault.MarkVerified(ctx, identityID); err != nil {
		return fmt.Errorf("mark credential verified: %w", err)
	}

	slog.InfoContext(ctx, "email verified", "identity_id", identityID)
	return nil
}

// ResendVerification supersedes the pending verification session and issues a
// new code, returning the replacement session id. It is keyed on the session
// id from registration, so it never discloses whether an email is registered.
func (s *AuthService) ResendVerification(ctx context.Context, sessionID string) (string, error) {
	return s.Otp.Resend(ctx, sessionID, domain.PurposeEmailVerification)
}

// Logout revokes the presented refresh token, ending that session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.Ledger.Revoke(ctx, refreshToken)
}

// RevokeAll ends every session the identity holds, across all devices.
func (s *AuthService) RevokeAll(ctx context.Context, identityID string) error {
	return s.Ledger.RevokeAllForIdentity(ctx, identityID)
}

// ForgotPassword issues a password reset code, superseding any pending one.
// An unknown email is reported as such.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	identity, err := s.Store.Identities().GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrEmailNotFound
		}
		return "", fmt.Errorf("lookup identity: %w", err)
	}

	return s.Otp.Reissue(ctx, identity, domain.PurposePasswordReset)
}

// ResetPassword redeems a reset code and replaces the password. Reusing the
// current password consumes an attempt on the session and fails. A successful
// reset proves email ownership, so verification is backfilled, and every
// outstanding session is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, sessionID, code, newPassword string) error {
	identityID, err := s.Otp.Verify(ctx, sessionID, domain.PurposePasswordReset, code)
	if err != nil {
		return err
	}

	same, err := s.Vault.PasswordMatches(ctx, identityID, newPassword)
	if err != nil {
		return err
	}
	if same {
		s.Otp.RecordFailedAttempt(ctx, sessionID)
		return ErrSamePassword
	}

	if err := s.Vault.UpdatePassword(ctx, identityID, newPassword); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.Otp.BackfillEmailVerification(ctx, identityID); err != nil {
		return err
	}
	if err := s.Vault.MarkVerified(ctx, identityID); err != nil {
		return fmt.Errorf("mark credential verified: %w", err)
	}

	if err := s.Ledger.RevokeAllForIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	slog.InfoContext(ctx, "password reset completed", "identity_id", identityID)
	return nil
}

// GetProfile returns the identity together with its verification state.
func (s *AuthService) GetProfile(ctx context.Context, identityID string) (Profile, error) {
	identity, err := s.Store.Identities().GetIdentityByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, ErrEmailNotFound
		}
		return Profile{}, fmt.Errorf("lookup identity: %w", err)
	}

	cred, err := s.Store.Credentials().GetCredentialByIdentity(ctx, identityID)
	if err != nil {
		return Profile{}, fmt.Errorf("lookup credential: %w", err)
	}

	return Profile{
		Identity:      identity,
		EmailVerified: cred.Verified,
		LastLogin:     cred.LastLogin,
	}, nil
}

func (s *AuthService) mintPair(ctx context.Context, identity domain.Identity, client domain.ClientContext) (domain.TokenPair, error) {
	refresh, err := s.Ledger.Issue(ctx, identity.ID, client)
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, err := s.Signer.Sign(identity.ID, identity.Email, identity.Role, time.Now())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Signer.TTL().Seconds()),
	}, nil
}
