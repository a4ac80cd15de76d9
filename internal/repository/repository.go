package repository

import (
	"errors"
	"fmt"
)

// Op names the store operation that failed.
type Op string

const (
	OpOpen       Op = "open"
	OpInitialize Op = "initialize"
	OpInsert     Op = "insert"
	OpList       Op = "list"
	OpClose      Op = "close"
)

var (
	ErrReadOnly = errors.New("store is read-only")
	ErrClosed   = errors.New("store is closed")
)

// StorageError is the single error kind returned at the store boundary.
// It covers open, create, write and read failures against the storage medium.
type StorageError struct {
	Op      Op
	Backend string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage %s (%s %s): %v", e.Op, e.Backend, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err for the given operation. A nil err yields nil, and an err
// that already is a StorageError is returned as is.
func NewStorageError(op Op, backend, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Backend: backend, Path: path, Err: err}
}

// IsStorageError reports whether err (or anything it wraps) is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// OpOf returns the failed operation recorded in err, or "" if err is not a StorageError.
func OpOf(err error) Op {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Op
	}
	return ""
}
