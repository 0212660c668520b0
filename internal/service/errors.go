package service

import "errors"

// Service-level sentinel errors. Callers check them with errors.Is; the API
// layer maps them to HTTP statuses.
var (
	// ErrPostNotFound indicates that the post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidPost indicates that title or body failed validation.
	ErrInvalidPost = errors.New("invalid post")
)
