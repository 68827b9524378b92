package models

import "errors"

// ErrNotFound is returned by stores when a referenced row does not exist.
var ErrNotFound = errors.New("not found")
