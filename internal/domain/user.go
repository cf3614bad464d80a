package domain

import "time"

// User is a registered account. PasswordHash never leaves the app layer.
type User struct {
	ID           UserID
	Email        string
	Name         string
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID    UserID
	Email string
	Name  string
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
