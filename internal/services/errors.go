package services

import (
	"errors"
	"fmt"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("You do not have permission to perform this action")
	ErrNoTenant        = errors.New("User is not linked to a tenant")
	ErrConflict        = errors.New("conflict")
	ErrThrottled       = errors.New("Too many failed login attempts")
	ErrUnauthenticated = errors.New("authentication failed")
)

// kindError keeps a sentinel for status mapping while carrying the message
// shown to the client.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func withMessage(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func notFound(msg string) error     { return withMessage(ErrNotFound, msg) }
func unauthorized(msg string) error { return withMessage(ErrUnauthenticated, msg) }
func conflict(msg string) error     { return withMessage(ErrConflict, msg) }

// ValidationError is a 400 with an optional per-field breakdown.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func InvalidFields(fields map[string]string) error {
	return &ValidationError{Message: "validation failed", Fields: fields}
}

// storeError maps repository sentinels for resource name.
func storeError(err error, name string) error {
	var te *model.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(name + " not found")
	case errors.Is(err, repository.ErrDuplicate):
		return Invalid(name + " already exists")
	case errors.Is(err, repository.ErrForeignKey):
		return Invalid(repository.ErrForeignKey.Error())
	case errors.Is(err, repository.ErrStale):
		return conflict(err.Error())
	case errors.As(err, &te):
		return conflict(te.Error())
	}
	return err
}
