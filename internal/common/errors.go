// Package common defines shared sentinel errors and small crypto-adjacent
// helpers used across the file relay's layers. Callers should use errors.Is
// to match the sentinel values.
package common

import "errors"

var (
	// Request validation errors.
	ErrValidation = errors.New("file and passcode required")

	// Format guard errors.
	ErrUnsupportedFormat = errors.New("file format is not allowed")

	// Record lifecycle errors.
	ErrNotFound    = errors.New("file not found")
	ErrExpired     = errors.New("file expired")
	ErrDuplicateID = errors.New("duplicate upload id")

	// Retrieval errors (decryption rejected the supplied passcode).
	ErrInvalidPasscode = errors.New("invalid passcode")

	// Blob backend errors.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrNotFoundOnBackend  = errors.New("object not found on backend")

	// Download token errors (invalid, malformed or expired capability).
	ErrInvalidToken = errors.New("invalid download token")
)
