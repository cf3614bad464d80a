package userrepo

import "errors"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another user already holds the (normalized) email.
	ErrEmailTaken = errors.New("user email already taken")
)
