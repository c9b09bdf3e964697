package store

import "fmt"

// StorageError wraps any fault from the sample store. Callers treat it as
// non-fatal (log and continue) except during initial schema setup.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
