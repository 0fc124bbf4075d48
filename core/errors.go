package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a record does not exist OR the caller is not allowed to see it.
// Both cases are reported the same way so record ids cannot be probed.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (e NotFoundError) Error() string {
	return e.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConflictError reports a uniqueness or state conflict (already enrolled, attempt already submitted...).
type ConflictError struct {
	message string
}

func NewConflictError(msg string) error {
	return &ConflictError{message: msg}
}

func (e ConflictError) Error() string {
	return e.message
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// PermissionError is returned when the caller's role or account status does not allow an action at all.
type PermissionError struct {
	message string
}

func NewPermissionError(msg string) error {
	return &PermissionError{message: msg}
}

func (e PermissionError) Error() string {
	return e.message
}

func IsPermission(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

// InfoError is a user-facing notice rather than a failure (eg: no attempts left).
type InfoError struct {
	message string
}

func NewInfoError(msg string) error {
	return &InfoError{message: msg}
}

func (e InfoError) Error() string {
	return e.message
}

func IsInfo(err error) bool {
	_, ok := errors.Cause(err).(*InfoError)
	return ok
}

// StorageError wraps a failure of the file storage backend.
type StorageError struct {
	Err error
}

func NewStorageError(err error, msg string) error {
	return &StorageError{Err: errors.Wrap(err, msg)}
}

func (e StorageError) Error() string {
	return e.Err.Error()
}

func IsStorage(err error) bool {
	_, ok := errors.Cause(err).(*StorageError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
