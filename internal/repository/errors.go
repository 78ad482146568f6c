package repository

import "errors"

// ErrNotFound covers both unknown and malformed identifiers.
var ErrNotFound = errors.New("task not found")
