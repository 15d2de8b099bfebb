package dao

import "errors"

// ErrInvalidID indicates that the supplied key is empty.
var ErrInvalidID = errors.New("dao: invalid id")
