package addressrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
)

// OwnerDirectory resolves owner display names for read views.
type OwnerDirectory interface {
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Repo is an in-memory implementation of addressrepo.Repository.
// It is safe for concurrent use. Update and Delete hold the write lock across
// the callback, which makes check-then-act atomic.
type Repo struct {
	mu sync.RWMutex

	owners OwnerDirectory
	nextID domain.AddressID
	byID   map[domain.AddressID]domain.Address
}

// NewRepo builds an empty repo. owners may be nil, in which case views carry no owner name.
func NewRepo(owners OwnerDirectory) *Repo {
	return &Repo{
		owners: owners,
		byID:   make(map[domain.AddressID]domain.Address),
	}
}

func (r *Repo) Create(ctx context.Context, a addressrepo.NewAddress) (domain.Address, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := a.CreatedAt.UTC()
	stored := domain.Address{
		ID:          r.nextID,
		OwnerID:     a.OwnerID,
		Title:       a.Title,
		Country:     a.Country,
		FullAddress: a.FullAddress,
		PostalCode:  a.PostalCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.byID[stored.ID] = stored
	return stored, nil
}

func (r *Repo) Get(ctx context.Context, id domain.AddressID) (domain.AddressView, error) {
	r.mu.RLock()
	a, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return domain.AddressView{}, addressrepo.ErrNotFound
	}
	return r.view(ctx, a), nil
}

func (r *Repo) List(ctx context.Context, f addressrepo.Filter) ([]domain.AddressView, error) {
	q := strings.ToLower(strings.TrimSpace(f.Search))

	r.mu.RLock()
	matched := make([]domain.Address, 0, len(r.byID))
	for _, a := range r.byID {
		if q == "" || matches(a, q) {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := make([]domain.AddressView, 0, len(matched))
	for _, a := range matched {
		out = append(out, r.view(ctx, a))
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id domain.AddressID, at time.Time, fn addressrepo.UpdateFunc) (domain.Address, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return domain.Address{}, addressrepo.ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return domain.Address{}, err
	}
	cur.Title = next.Title
	cur.Country = next.Country
	cur.FullAddress = next.FullAddress
	cur.PostalCode = next.PostalCode
	cur.UpdatedAt = at.UTC()
	r.byID[id] = cur
	return cur, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.AddressID, fn addressrepo.CheckFunc) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return addressrepo.ErrNotFound
	}
	if err := fn(cur); err != nil {
		return err
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) view(ctx context.Context, a domain.Address) domain.AddressView {
	v := domain.AddressView{Address: a}
	if r.owners != nil {
		if u, err := r.owners.GetByID(ctx, a.OwnerID); err == nil {
			v.OwnerName = u.Name
		}
	}
	return v
}

func matches(a domain.Address, q string) bool {
	for _, s := range []string{a.Title, a.Country, a.FullAddress, a.PostalCode} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
