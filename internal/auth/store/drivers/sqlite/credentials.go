package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
	"github.com/chapatuventa/marketplace/internal/auth/store"
)

type credentialsRepo struct {
	db dbtx
}

const credentialColumns = `id, identity_id, email, password_hash, is_verified, last_login, created_at, updated_at`

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, identity_id, email, password_hash, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.IdentityID, c.Email, c.PasswordHash, c.Verified, c.CreatedAt, c.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *credentialsRepo) GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE email = ?`, email)
	return scanCredential(row)
}

func (r *credentialsRepo) GetCredentialByIdentity(ctx context.Context, identityID string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE identity_id = ?`, identityID)
	return scanCredential(row)
}

func (r *credentialsRepo) UpdatePasswordHash(ctx context.Context, identityID string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET password_hash = ?, updated_at = ? WHERE identity_id = ?`,
		newHash, time.Now().UTC(), identityID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *credentialsRepo) SetVerified(ctx context.Context, identityID string, verified bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET is_verified = ?, updated_at = ? WHERE identity_id = ?`,
		verified, time.Now().UTC(), identityID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *credentialsRepo) TouchLastLogin(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET last_login = ? WHERE identity_id = ?`,
		time.Now().UTC(), identityID,
	)
	return err
}

func scanCredential(row rowScanner) (domain.Credential, error) {
	var c domain.Credential
	var lastLogin sql.NullTime
	err := row.Scan(
		&c.ID, &c.IdentityID, &c.Email, &c.PasswordHash, &c.Verified, &lastLogin, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	c.LastLogin = mapNullTimePtr(lastLogin)
	return c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
