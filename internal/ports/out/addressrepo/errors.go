package addressrepo

import "errors"

// ErrNotFound indicates the requested address does not exist.
var ErrNotFound = errors.New("address not found")
