package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing unique
// value that the caller may regenerate (activation codes, admin emails).
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a concurrent writer won a race on a unique
// key. The enclosing transaction is retried.
var ErrConflict = errors.New("conflict")
