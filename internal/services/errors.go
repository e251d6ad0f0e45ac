package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is mongo.ErrNoDocuments so callers can match either.
var ErrNotFound = mongo.ErrNoDocuments

var (
	ErrVersionConflict    = errors.New("task was modified by someone else, please reload and try again")
	ErrInvalidTransition  = errors.New("status change not allowed")
	ErrUsernameExists     = errors.New("username already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError is a rejected input value. Handlers answer it with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
