package services

import "errors"

var (
	// ErrRateLimitExceeded reports a client over its window capacity
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrTimeout reports an upstream call that exceeded its bound
	ErrTimeout = errors.New("timeout")
)
