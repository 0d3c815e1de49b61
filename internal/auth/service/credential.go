package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/pkg/cryptox"
	"github.com/chapatuventa/marketplace/pkg/idx"
)

var ErrDuplicateCredential = errors.New("credential already exists for email")

// CredentialService owns password storage and verification. Plaintext
// passwords never leave this service and are never persisted or logged.
type CredentialService struct {
	Store  store.Store
	Params cryptox.Params
}

// CreateCredential hashes the password and stores a credential for the
// identity. It runs against the given store handle so callers can enlist it
// in a transaction alongside identity creation.
func (s *CredentialService) CreateCredential(ctx context.Context, st store.Store, identityID, email, password string) (domain.Credential, error) {
	hash, err := cryptox.HashPassword(password, s.Params)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("hash password: %w", err)
	}

	cred := domain.Credential{
		ID:           idx.New().String(),
		IdentityID:   identityID,
		Email:        email,
		PasswordHash: hash,
	}

	if err := st.Credentials().CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Credential{}, ErrDuplicateCredential
		}
		return domain.Credential{}, fmt.Errorf("create credential: %w", err)
	}

	return cred, nil
}

// Verify checks an email and password pair. It returns the matching identity
// and true on success, and a zero identity with false for both an unknown
// email and a wrong password so callers cannot distinguish the two.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (domain.Identity, bool, error) {
	cred, err := s.Store.Credentials().GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, false, nil
		}
		return domain.Identity{}, false, fmt.Errorf("lookup credential: %w", err)
	}

	if err := cryptox.VerifyPassword(password, cred.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Identity{}, false, nil
		}
		return domain.Identity{}, false, fmt.Errorf("verify password: %w", err)
	}

	identity, err := s.Store.Identities().GetIdentityByID(ctx, cred.IdentityID)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("lookup identity: %w", err)
	}

	return identity, true, nil
}

// PasswordMatches reports whether the candidate password matches the stored
// hash for the identity.
func (s *CredentialService) PasswordMatches(ctx context.Context, identityID, password string) (bool, error) {
	cred, err := s.Store.Credentials().GetCredentialByIdentity(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("lookup credential: %w", err)
	}

	err = cryptox.VerifyPassword(password, cred.PasswordHash)
	if errors.Is(err, cryptox.ErrPasswordMismatch) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return true, nil
}

// UpdatePassword rehashes and replaces the identity's password.
func (s *CredentialService) UpdatePassword(ctx context.Context, identityID, newPassword string) error {
	hash, err := cryptox.HashPassword(newPassword, s.Params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.Credentials().UpdatePasswordHash(ctx, identityID, hash)
}

// MarkVerified flags the credential's email as confirmed.
func (s *CredentialService) MarkVerified(ctx context.Context, identityID string) error {
	return s.Store.Credentials().SetVerified(ctx, identityID, true)
}

// TouchLastLogin records the login timestamp. Failures are logged and
// swallowed so a bookkeeping hiccup never blocks a successful login.
func (s *CredentialService) TouchLastLogin(ctx context.Context, identityID string) {
	if err := s.Store.Credentials().TouchLastLogin(ctx, identityID); err != nil {
		slog.WarnContext(ctx, "failed to record last login", "identity_id", identityID, "error", err)
	}
}
