package domain

import "strconv"

// UserID identifies a registered user. Values are assigned by storage and are always positive.
type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseUserID parses the decimal form produced by UserID.String.
func ParseUserID(s string) (UserID, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return UserID(v), true
}

// AddressID identifies an address record.
type AddressID int64

func (id AddressID) String() string { return strconv.FormatInt(int64(id), 10) }
