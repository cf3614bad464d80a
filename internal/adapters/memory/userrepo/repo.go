package userrepo

import (
	"context"
	"sync"
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use; the email index plays the role of a unique constraint.
type Repo struct {
	mu sync.RWMutex

	nextID    domain.UserID
	byID      map[domain.UserID]domain.User
	idByEmail map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.UserID]domain.User),
		idByEmail: make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.NewUser) (domain.User, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idByEmail[u.Email]; ok {
		return domain.User{}, userrepo.ErrEmailTaken
	}
	r.nextID++
	now := u.CreatedAt.UTC()
	stored := domain.User{
		ID:           r.nextID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[stored.ID] = stored
	r.idByEmail[stored.Email] = stored.ID
	return stored, nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[email]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *Repo) UpdateProfile(ctx context.Context, id domain.UserID, change userrepo.ProfileChange, at time.Time) (domain.User, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	if change.Email != nil && *change.Email != u.Email {
		if _, taken := r.idByEmail[*change.Email]; taken {
			return domain.User{}, userrepo.ErrEmailTaken
		}
		delete(r.idByEmail, u.Email)
		u.Email = *change.Email
		r.idByEmail[u.Email] = u.ID
	}
	if change.Name != nil {
		u.Name = *change.Name
	}
	u.UpdatedAt = at.UTC()
	r.byID[id] = u
	return u, nil
}

// Delete removes a user. It is not part of the repository port; tests use it
// to simulate an account disappearing mid-session.
func (r *Repo) Delete(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		delete(r.idByEmail, u.Email)
		delete(r.byID, id)
	}
}
