package repository

import "errors"

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found, or a
	// compare-and-set precondition did not hold at commit time.
	ErrNotFound = errors.New("not found")
)

// Lock errors
var (
	// ErrLockNotAcquired indicates the lock could not be acquired.
	ErrLockNotAcquired = errors.New("lock not acquired")
)
