package addressrepo

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
)

// Fields are the user-editable columns of an address.
type Fields struct {
	Title       string
	Country     string
	FullAddress string
	PostalCode  string
}

type NewAddress struct {
	OwnerID domain.UserID
	Fields
	CreatedAt time.Time
}

// Filter narrows List. Search is a case-insensitive substring matched against
// title, country, full address and postal code.
type Filter struct {
	Search string
}

// UpdateFunc receives the current row and returns the fields to store. Returning
// an error aborts the update and is passed through unchanged.
type UpdateFunc func(current domain.Address) (Fields, error)

// CheckFunc inspects the current row before deletion. Returning an error aborts.
type CheckFunc func(current domain.Address) error

// Repository persists addresses.
//
// Update and Delete run their callback and the write as one atomic step (row
// lock or mutex), so an ownership decision made in the callback cannot be
// invalidated by a concurrent writer. Missing rows yield ErrNotFound without
// invoking the callback.
//
// List returns newest first (CreatedAt desc, ID desc).
type Repository interface {
	Create(ctx context.Context, a NewAddress) (domain.Address, error)
	Get(ctx context.Context, id domain.AddressID) (domain.AddressView, error)
	List(ctx context.Context, f Filter) ([]domain.AddressView, error)

	Update(ctx context.Context, id domain.AddressID, at time.Time, fn UpdateFunc) (domain.Address, error)
	Delete(ctx context.Context, id domain.AddressID, fn CheckFunc) error
}
