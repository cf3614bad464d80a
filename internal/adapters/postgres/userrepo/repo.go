package userrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	postgres "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

const emailConstraint = "users_email_unique"

// Repo is a Postgres implementation of userrepo.Repository.
// Email uniqueness is the users_email_unique constraint.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u userrepo.NewUser) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, email, name, password_hash, created_at, updated_at
	`,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.CreatedAt.UTC(),
	)
	out, err := scanUser(row)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailConstraint) {
			return domain.User{}, userrepo.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return out, nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	return scanUser(r.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, int64(id)))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	return scanUser(r.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email))
}

// UpdateProfile is a single conditional UPDATE; COALESCE keeps unspecified columns.
func (r *Repo) UpdateProfile(ctx context.Context, id domain.UserID, change userrepo.ProfileChange, at time.Time) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    updated_at = $4
		WHERE id = $1
		RETURNING id, email, name, password_hash, created_at, updated_at
	`,
		int64(id),
		change.Name,
		change.Email,
		at.UTC(),
	)
	out, err := scanUser(row)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailConstraint) {
			return domain.User{}, userrepo.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return out, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (domain.User, error) {
	var (
		id        int64
		u         domain.User
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &u.Email, &u.Name, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = domain.UserID(id)
	u.CreatedAt = createdAt.UTC()
	u.UpdatedAt = updatedAt.UTC()
	return u, nil
}
