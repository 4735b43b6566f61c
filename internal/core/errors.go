package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/huddle/internal/store"
)

// Error codes reported to the connection that issued a command.
const (
	ErrCodeValidation      = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeNotMember       = "not_member"
	ErrCodeNotInRoom       = "not_in_room"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodePersistence     = "persistence_error"
	ErrCodeBadRequest      = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// PersistenceError reports a failed durable store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// toCoreError maps any handler error onto the code reported to clients.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return coreError(ErrCodePersistence, "storage unavailable")
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeNotFound, err.Error())
	case errors.Is(err, store.ErrNotMember):
		return coreError(ErrCodeNotMember, err.Error())
	case errors.Is(err, store.ErrAlreadyMember), errors.Is(err, store.ErrNameTaken):
		return coreError(ErrCodeConflict, err.Error())
	}
	return coreError(ErrCodePersistence, "storage unavailable")
}
