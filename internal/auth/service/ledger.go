package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/pkg/cryptox"
	"github.com/chapatuventa/marketplace/pkg/idx"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrTokenExpired       = errors.New("refresh token expired")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
)

// LedgerService mints, rotates, and revokes refresh tokens. Tokens are stored
// only as fingerprints; every token minted by one login shares a family id so
// reuse detection can cut off the whole descendant chain at once.
type LedgerService struct {
	Store      store.Store
	RefreshTTL time.Duration
}

// Issue mints a fresh token in a brand new family. The plaintext is returned
// to the caller and never persisted.
func (s *LedgerService) Issue(ctx context.Context, identityID string, client domain.ClientContext) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	record := domain.RefreshToken{
		ID:          idx.New().String(),
		IdentityID:  identityID,
		TokenHash:   cryptox.FingerprintToken(token),
		TokenFamily: uuid.NewString(),
		ExpiresAt:   time.Now().UTC().Add(s.RefreshTTL),
		IP:          client.IP,
		UserAgent:   client.UserAgent,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return token, nil
}

// Rotate exchanges a live token for its successor in the same family and
// returns the new plaintext along with the owning identity id. A revoked
// token presented here is treated as theft evidence: every live token in the
// family is revoked before the call fails.
func (s *LedgerService) Rotate(ctx context.Context, token string, client domain.ClientContext) (string, string, error) {
	hash := cryptox.FingerprintToken(token)

	current, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("lookup refresh token: %w", err)
	}

	if current.Revoked {
		// Family revocation must stick even though this call errors, so it
		// runs outside the rotation transaction.
		if err := s.Store.RefreshTokens().RevokeTokenFamily(ctx, current.TokenFamily, domain.RevocationReuseDetected); err != nil {
			return "", "", fmt.Errorf("revoke token family: %w", err)
		}
		slog.WarnContext(ctx, "refresh token reuse detected",
			"identity_id", current.IdentityID, "token_family", current.TokenFamily)
		return "", "", ErrTokenReuseDetected
	}

	if time.Now().UTC().After(current.ExpiresAt) {
		return "", "", ErrTokenExpired
	}

	next, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	nextHash := cryptox.FingerprintToken(next)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, hash, domain.RevocationReplaced, nextHash); err != nil {
			return fmt.Errorf("revoke predecessor: %w", err)
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:          idx.New().String(),
			IdentityID:  current.IdentityID,
			TokenHash:   nextHash,
			TokenFamily: current.TokenFamily,
			ExpiresAt:   time.Now().UTC().Add(s.RefreshTTL),
			IP:          client.IP,
			UserAgent:   client.UserAgent,
		})
	})
	if err != nil {
		return "", "", err
	}

	return next, current.IdentityID, nil
}

// Revoke terminates a single token, ending its rotation chain.
func (s *LedgerService) Revoke(ctx context.Context, token string) error {
	hash := cryptox.FingerprintToken(token)

	current, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if current.Revoked {
		return ErrInvalidToken
	}

	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, hash, domain.RevocationLogout, "")
}

// RevokeAllForIdentity revokes every live token the identity holds, across
// all families and devices.
func (s *LedgerService) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	return s.Store.RefreshTokens().RevokeAllIdentityRefreshTokens(ctx, identityID, domain.RevocationRevokeAll)
}
