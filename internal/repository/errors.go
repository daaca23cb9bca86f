package repository

import "errors"

var (
	// ErrNotFound is returned when no student matches the requested id.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicate is returned when a student id is already present.
	ErrDuplicate = errors.New("student id already exists")
)
