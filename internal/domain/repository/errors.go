package repository

import "errors"

// ErrNotFound is returned by stores when nothing is saved under the key.
var ErrNotFound = errors.New("not found")
