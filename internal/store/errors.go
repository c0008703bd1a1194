package store

import "errors"

// ErrNotFound keeps not-found results consistent across the in-memory and
// PostgreSQL implementations.
var ErrNotFound = errors.New("voter record not found")
