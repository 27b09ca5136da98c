package database

import "errors"

// ErrNotFound is returned when an update or delete matched no row.
var ErrNotFound = errors.New("not found")
