package domain

import "time"

// Address is an owned resource. OwnerID is set at creation and never reassigned.
type Address struct {
	ID          AddressID
	OwnerID     UserID
	Title       string
	Country     string
	FullAddress string
	PostalCode  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddressView is an Address joined with its owner's display name for read endpoints.
type AddressView struct {
	Address
	OwnerName string
}
