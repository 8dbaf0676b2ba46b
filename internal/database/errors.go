package database

import "errors"

// ErrNotFound indicates the requested row does not exist. Repositories wrap
// it so callers can map it to a 404 without string matching.
var ErrNotFound = errors.New("not found")
