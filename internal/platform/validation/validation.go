package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Letters, spaces and ' - , .
	personNameRe = regexp.MustCompile(`^[a-zA-Z '\-,.]+$`)
	hasLetterRe  = regexp.MustCompile(`[a-zA-Z]`)
	hasDigitRe   = regexp.MustCompile(`[0-9]`)
)

// Validator wraps go-playground/validator with the account and address rules.
// It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("letterdigit", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return hasLetterRe.MatchString(s) && hasDigitRe.MatchString(s)
	})
	return &Validator{v: v}
}

// Struct validates s and returns a field -> message map, or nil when s is valid.
// A non-validation failure (e.g. s is not a struct) is returned as err.
func (v *Validator) Struct(s any) (map[string]string, error) {
	err := v.v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out, nil
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "personname":
		return fmt.Sprintf("%s only allow letters, spaces and characters: ' - , .", field)
	case "letterdigit":
		return fmt.Sprintf("%s at least 1 letter and 1 number", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
