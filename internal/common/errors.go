// Package common defines shared constants and sentinel errors used across
// the filevault server layers. Callers should use errors.Is to match these
// values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Input errors.
	ErrValidation      = errors.New("validation error")
	ErrPayloadTooLarge = errors.New("payload too large")

	// Lookup / access errors. A missing file and an invalid or expired share
	// token both map to ErrNotFound.
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Envelope errors.
	ErrDecryption = errors.New("decryption failed")

	// Backend errors. ErrRetrieval is a failed object-store read on the
	// download path, ErrStorage any other object-store or record-store fault.
	ErrRetrieval = errors.New("retrieval failed")
	ErrStorage   = errors.New("storage error")

	// ErrConfiguration is fatal and only returned during startup.
	ErrConfiguration = errors.New("configuration error")

	// Auth errors (invalid or malformed access token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
