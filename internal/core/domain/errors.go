package domain

import "errors"

// ErrStorageUnavailable classifies durable-store failures (unreachable
// database, query timeout). It lives in this package so both the logic
// layer (which wraps it) and the middleware (which maps it to a 500
// instead of an auth failure) can match it without depending on each
// other.
var ErrStorageUnavailable = errors.New("storage unavailable")
