package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrCollaborator = errors.New("ledger collaborator failure")
	ErrStorage      = errors.New("catalog storage failure")
	ErrSpawn        = errors.New("ledger actor spawn failure")
	ErrActorStopped = errors.New("ledger actor stopped")
)

// LedgerError carries a collaborator failure message verbatim.
type LedgerError struct {
	Op      string
	Message string
}

func (e *LedgerError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *LedgerError) Is(target error) bool {
	return target == ErrCollaborator
}

// StorageError wraps a Catalog Store driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
