package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Outcome tells an applied mutation apart from one that found the desired
// state already in place.
type Outcome int

const (
	Applied Outcome = iota
	NoOp
)

func (o Outcome) String() string {
	if o == NoOp {
		return "no-op"
	}
	return "applied"
}

// Error is the error type returned by the store, the identity resolver
// and the social managers.
type Error struct {
	Kind    error
	Item    string
	ID      string
	Service string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotFound:
		if e.Item != "" {
			return fmt.Sprintf("%s with id %s not found", e.Item, e.ID)
		}
		return "item not found"
	case ErrServiceUnavailable:
		return fmt.Sprintf("an error occurred in the %s", e.Service)
	case ErrValidation:
		if e.Detail != "" {
			return "bad request: " + strings.ToLower(e.Detail)
		}
		return "bad request"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound reports a missing post, user or comment.
func NotFound(item string, id any) *Error {
	return &Error{Kind: ErrNotFound, Item: item, ID: fmt.Sprint(id)}
}

// Invalid reports malformed input.
func Invalid(detail string) *Error {
	return &Error{Kind: ErrValidation, Detail: detail}
}

// Unavailable reports a failing collaborator, named by service.
func Unavailable(service string, err error) *Error {
	return &Error{Kind: ErrServiceUnavailable, Service: service, Err: err}
}
