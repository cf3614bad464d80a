package clock

import "time"

// Clock is the application's only source of "now". Token expiry and record
// timestamps are computed from it so tests can pin time.
type Clock interface {
	Now() time.Time
}
