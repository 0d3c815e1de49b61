package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/service"
	"github.com/chapatuventa/marketplace/pkg/cryptox"

	"github.com/stretchr/testify/require"
)

var testClient = domain.ClientContext{IP: "198.51.100.4", UserAgent: "ledger-test"}

func TestLedger_IssueAndRotate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "rotate@example.com")

	first, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)

	second, gotID, err := h.Ledger.Rotate(ctx, first, testClient)
	require.NoError(t, err)
	require.Equal(t, identity.ID, gotID)
	require.NotEqual(t, first, second)

	// The predecessor records its successor and the rotation reason.
	old, err := h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(first))
	require.NoError(t, err)
	require.True(t, old.Revoked)
	require.Equal(t, domain.RevocationReplaced, old.RevocationReason)
	require.Equal(t, cryptox.FingerprintToken(second), old.ReplacedByHash)

	// Successor stays in the same family and is live.
	next, err := h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(second))
	require.NoError(t, err)
	require.False(t, next.Revoked)
	require.Equal(t, old.TokenFamily, next.TokenFamily)
}

func TestLedger_ReuseRevokesFamily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "reuse@example.com")

	first, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)
	second, _, err := h.Ledger.Rotate(ctx, first, testClient)
	require.NoError(t, err)
	third, _, err := h.Ledger.Rotate(ctx, second, testClient)
	require.NoError(t, err)

	// Presenting the already-rotated token is reuse.
	_, _, err = h.Ledger.Rotate(ctx, second, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)

	// The newest token in the family dies with it.
	latest, err := h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(third))
	require.NoError(t, err)
	require.True(t, latest.Revoked)
	require.Equal(t, domain.RevocationReuseDetected, latest.RevocationReason)

	_, _, err = h.Ledger.Rotate(ctx, third, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)
}

func TestLedger_SeparateFamiliesSurviveReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "families@example.com")

	laptop, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)
	phone, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)

	_, _, err = h.Ledger.Rotate(ctx, laptop, testClient)
	require.NoError(t, err)
	_, _, err = h.Ledger.Rotate(ctx, laptop, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)

	// Reuse in one family leaves the other login untouched.
	_, _, err = h.Ledger.Rotate(ctx, phone, testClient)
	require.NoError(t, err)
}

func TestLedger_ExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "ledgerexpiry@example.com")

	ledger := &service.LedgerService{Store: h.Store, RefreshTTL: -time.Minute}
	token, err := ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)

	_, _, err = h.Ledger.Rotate(ctx, token, testClient)
	require.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestLedger_Revoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "ledgerlogout@example.com")

	token, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)

	require.NoError(t, h.Ledger.Revoke(ctx, token))

	rec, err := h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	require.NoError(t, err)
	require.True(t, rec.Revoked)
	require.Equal(t, domain.RevocationLogout, rec.RevocationReason)
	require.Empty(t, rec.ReplacedByHash)

	// Double logout and unknown tokens are both rejected.
	require.ErrorIs(t, h.Ledger.Revoke(ctx, token), service.ErrInvalidToken)
	require.ErrorIs(t, h.Ledger.Revoke(ctx, "never-issued"), service.ErrInvalidToken)
}

func TestLedger_RevokeAllForIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := seedIdentity(t, h.Store, "ledgerall@example.com")
	other := seedIdentity(t, h.Store, "ledgerother@example.com")

	mine, err := h.Ledger.Issue(ctx, identity.ID, testClient)
	require.NoError(t, err)
	theirs, err := h.Ledger.Issue(ctx, other.ID, testClient)
	require.NoError(t, err)

	require.NoError(t, h.Ledger.RevokeAllForIdentity(ctx, identity.ID))

	rec, err := h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(mine))
	require.NoError(t, err)
	require.True(t, rec.Revoked)
	require.Equal(t, domain.RevocationRevokeAll, rec.RevocationReason)

	rec, err = h.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(theirs))
	require.NoError(t, err)
	require.False(t, rec.Revoked)
}
