package userrepo

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
)

// NewUser is the insert shape; ID and timestamps are assigned by the repository.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// ProfileChange lists the fields to overwrite; nil fields are left untouched.
type ProfileChange struct {
	Name  *string
	Email *string
}

// Repository persists users. Email uniqueness is enforced by the repository
// itself (unique index or equivalent), never only by a caller's pre-check.
type Repository interface {
	Create(ctx context.Context, u NewUser) (domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdateProfile applies change atomically and returns the stored result.
	UpdateProfile(ctx context.Context, id domain.UserID, change ProfileChange, at time.Time) (domain.User, error)
}
