// Package authz implements the single ownership rule: only the user recorded
// as a resource's owner may mutate it.
//
// Existence is not decided here. Repositories report a missing row before any
// guard runs, so NotFound always wins over Forbidden.
package authz

import (
	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
)

var ErrForbidden = apperr.Forbidden("You are not allowed to modify this resource.")

// Authorize allows the call iff subject owns the resource.
func Authorize(subject, owner domain.UserID) error {
	if subject != owner {
		return ErrForbidden
	}
	return nil
}
