package model

import "errors"

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")
