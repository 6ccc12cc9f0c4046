package storage

import "errors"

var (
	// ErrQuotaExceeded is returned by InsertWithinQuota when the user already reached the limit
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrInvalidRecord is returned when a history record is missing its owner
	ErrInvalidRecord = errors.New("history record has no user id")

	// ErrUnexpectedStatus is returned when the REST backend answers with a non-success status
	ErrUnexpectedStatus = errors.New("unexpected status from database")
)
