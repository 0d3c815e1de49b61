package sqlite

import (
	"context"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/domain"
)

type identitiesRepo struct {
	db dbtx
}

const identityColumns = `id, email, first_name, last_name, is_active, role, created_at, updated_at`

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.Identity) error {
	now := time.Now().UTC()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, email, first_name, last_name, is_active, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Email, i.FirstName, i.LastName, i.Active, i.Role, i.CreatedAt, i.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)
	return scanIdentity(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (domain.Identity, error) {
	var i domain.Identity
	err := row.Scan(
		&i.ID, &i.Email, &i.FirstName, &i.LastName, &i.Active, &i.Role, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return i, nil
}
