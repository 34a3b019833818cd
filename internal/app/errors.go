package app

import "errors"

var (
	// ErrValidation indicates bad input; no side effects were performed.
	ErrValidation = errors.New("invalid input")
	// ErrNotConfigured indicates a required backend (record store,
	// object store, transform provider) was not configured.
	ErrNotConfigured = errors.New("not configured")
	// ErrNotFound indicates a referenced generation or session is absent.
	ErrNotFound = errors.New("not found")
	// ErrPersistence indicates a store or record write failed.
	ErrPersistence = errors.New("persistence failed")
)
