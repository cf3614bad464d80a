package accounts

import (
	"time"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type RegisterResult struct {
	User    domain.PublicUser
	Message string
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        domain.PublicUser
}

// ProfilePatch is a partial profile update. Name and Email are independent:
// an unspecified field is left as stored. Neither may be null.
type ProfilePatch struct {
	Name  Optional[string]
	Email Optional[string]
}

// The structs below carry validation rules; field names in errors come from the json tags.

type registerFields struct {
	Name     string `json:"name" validate:"required,min=3,max=50,personname"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50,letterdigit"`
}

type loginFields struct {
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50"`
}

type profileFields struct {
	Name  *string `json:"name" validate:"omitnil,min=3,max=50,personname"`
	Email *string `json:"email" validate:"omitnil,email,max=50"`
}
