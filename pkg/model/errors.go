package model

import "errors"

// ErrInvalidRequest is returned, wrapped with detail, when a request fails a
// precondition before any network call is made. It is never retried.
var ErrInvalidRequest = errors.New("invalid request")
