package core

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotRecurring  = errors.New("job is not recurring")
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyName     = errors.New("empty name")
	ErrTitleTooLong  = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ErrSessionExpired means the external calendar rejected the session token.
// The user has to sign in again.
var ErrSessionExpired = errors.New("calendar session expired")
