package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, identity_id, token_hash, token_family, expires_at, is_revoked,
	revocation_reason, revoked_at, replaced_by_hash, ip_address, user_agent, created_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, identity_id, token_hash, token_family, expires_at, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.IdentityID, t.TokenHash, t.TokenFamily, t.ExpiresAt,
		mapStringNull(t.IP), mapStringNull(t.UserAgent), t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash, reason, replacedByHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = 1, revocation_reason = ?, revoked_at = ?, replaced_by_hash = NULLIF(?, '')
		WHERE token_hash = ?`,
		reason, time.Now().UTC(), replacedByHash, hash,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *refreshTokensRepo) RevokeTokenFamily(ctx context.Context, family, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = 1, revocation_reason = ?, revoked_at = ?
		WHERE token_family = ? AND is_revoked = 0`,
		reason, time.Now().UTC(), family,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllIdentityRefreshTokens(ctx context.Context, identityID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = 1, revocation_reason = ?, revoked_at = ?
		WHERE identity_id = ? AND is_revoked = 0`,
		reason, time.Now().UTC(), identityID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`,
		time.Now().UTC().Add(-30*24*time.Hour),
	)
	return err
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	var reason, replacedBy, ip, userAgent sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.IdentityID, &t.TokenHash, &t.TokenFamily, &t.ExpiresAt, &t.Revoked,
		&reason, &revokedAt, &replacedBy, &ip, &userAgent, &t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.RevocationReason = mapNullString(reason)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.ReplacedByHash = mapNullString(replacedBy)
	t.IP = mapNullString(ip)
	t.UserAgent = mapNullString(userAgent)
	return t, nil
}
