package models

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels. ValidationErrors matches them through errors.Is.
var (
	ErrMissingSender    = errors.New("sender is required")
	ErrMissingReceiver  = errors.New("receiver is required")
	ErrEmptyContent     = errors.New("content is empty")
	ErrSelfConversation = errors.New("sender and receiver must differ")
)

// FieldError is a single validation failure on a named field.
type FieldError struct {
	Field string `json:"field"`
	Cause error  `json:"-"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Cause)
}

// ValidationErrors aggregates field failures so callers see every problem at once.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// Add records err against field. Nil errors are ignored.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	v.Errors = append(v.Errors, FieldError{Field: field, Cause: err})
}

// Err returns nil when nothing failed.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.Errors))
	for _, err := range v.Errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// Is allows errors.Is to match any recorded cause.
func (v *ValidationErrors) Is(target error) bool {
	if v == nil {
		return false
	}
	for _, err := range v.Errors {
		if errors.Is(err.Cause, target) {
			return true
		}
	}
	return false
}
