// Package validation holds the shared go-playground validator instance and
// the social-specific rules registered on it.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// TagPattern is the accepted shape of a topic tag.
var TagPattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,128}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the singleton validator with custom rules registered.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = RegisterRules(validate)
	})
	return validate
}

// RegisterRules adds the social rules to v. It is also applied to gin's
// binding validator so request structs can use them.
func RegisterRules(v *validator.Validate) error {
	return v.RegisterValidation("socialtag", func(fl validator.FieldLevel) bool {
		return TagPattern.MatchString(fl.Field().String())
	})
}

// Struct validates s and returns a single readable error naming every
// failing field, or nil.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Tag reports whether tag is a well-formed topic tag.
func Tag(tag string) bool {
	return TagPattern.MatchString(tag)
}

func message(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid absolute url", field)
	case "socialtag":
		return fmt.Sprintf("%s must match %s", field, TagPattern.String())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
