package accounts

import "github.com/Overland-East-Bay/address-book-api/internal/app/apperr"

var (
	// ErrEmailTaken is deliberately generic: it does not echo the address back.
	ErrEmailTaken = apperr.Conflict("EMAIL_TAKEN", "Email already exists.")

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = &apperr.Error{
		Kind:    apperr.KindInvalidCredentials,
		Code:    "INVALID_CREDENTIALS",
		Message: "Email or password is not correct.",
	}

	ErrUserNotFound     = apperr.NotFound("No such user")
	ErrNotAuthenticated = apperr.Unauthorized("authentication required")
)
