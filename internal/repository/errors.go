package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent writer won a unique constraint
	ErrConflict = errors.New("conflict")
)
