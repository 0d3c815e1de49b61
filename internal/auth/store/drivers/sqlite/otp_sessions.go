package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
)

type otpSessionsRepo struct {
	db dbtx
}

const otpColumns = `id, identity_id, code_hash, purpose, expires_at, attempts, is_verified, is_used, created_at, verified_at`

func (r *otpSessionsRepo) CreateOtpSession(ctx context.Context, s domain.OtpSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	var verifiedAt sql.NullTime
	if s.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *s.VerifiedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_sessions (id, identity_id, code_hash, purpose, expires_at, attempts, is_verified, is_used, created_at, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.IdentityID, s.CodeHash, string(s.Purpose), s.ExpiresAt, s.Attempts, s.Verified, s.Used, s.CreatedAt, verifiedAt,
	)
	return mapConstraint(err)
}

func (r *otpSessionsRepo) GetOtpSession(ctx context.Context, id string) (domain.OtpSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+otpColumns+` FROM otp_sessions WHERE id = ?`, id)
	return scanOtpSession(row)
}

func (r *otpSessionsRepo) GetOtpSessionForPurpose(ctx context.Context, id string, purpose domain.OtpPurpose) (domain.OtpSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+otpColumns+` FROM otp_sessions WHERE id = ? AND purpose = ?`, id, string(purpose))
	return scanOtpSession(row)
}

func (r *otpSessionsRepo) GetLatestOtpSession(ctx context.Context, identityID string, purpose domain.OtpPurpose) (domain.OtpSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+otpColumns+` FROM otp_sessions
		WHERE identity_id = ? AND purpose = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		identityID, string(purpose),
	)
	return scanOtpSession(row)
}

func (r *otpSessionsRepo) IncrementOtpAttempts(ctx context.Context, id string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_sessions SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}

	var attempts int
	err = r.db.QueryRowContext(ctx,
		`SELECT attempts FROM otp_sessions WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *otpSessionsRepo) MarkOtpUsed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_sessions SET is_used = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *otpSessionsRepo) MarkOtpVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE otp_sessions SET is_verified = 1, is_used = 1, verified_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *otpSessionsRepo) HasVerifiedOtp(ctx context.Context, identityID string, purpose domain.OtpPurpose) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM otp_sessions
		WHERE identity_id = ? AND purpose = ? AND is_verified = 1 AND is_used = 1`,
		identityID, string(purpose),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *otpSessionsRepo) DeleteExpiredOtpSessions(ctx context.Context) error {
	// Only rows that can no longer influence any verification decision:
	// consumed sessions, and unredeemed codes long past their window.
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_sessions
		WHERE (is_used = 1 AND is_verified = 0)
		   OR (is_used = 0 AND expires_at < ?)`,
		time.Now().UTC().Add(-24*time.Hour),
	)
	return err
}

func scanOtpSession(row rowScanner) (domain.OtpSession, error) {
	var s domain.OtpSession
	var purpose string
	var verifiedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.IdentityID, &s.CodeHash, &purpose, &s.ExpiresAt, &s.Attempts,
		&s.Verified, &s.Used, &s.CreatedAt, &verifiedAt,
	)
	if err != nil {
		return domain.OtpSession{}, mapNotFound(err)
	}
	s.Purpose = domain.OtpPurpose(purpose)
	s.VerifiedAt = mapNullTimePtr(verifiedAt)
	return s, nil
}
