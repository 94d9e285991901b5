package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrDuplicateHistory = errors.New("skill history already recorded for this result")
	ErrStatusConflict   = errors.New("session is not pending")
	ErrClosed           = errors.New("store closed")
)
