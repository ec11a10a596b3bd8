// Package common defines shared constants and sentinel errors used across
// KeyHaven components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// ErrReverifyRequired is returned by the auth gate when a sensitive
	// operation is attempted and the last successful biometric verification
	// is older than the configured re-verification interval.
	ErrReverifyRequired = errors.New("biometric re-verification required")

	// Cipher errors. A decryption failure must never be reported as an
	// empty secret.
	ErrDecryption = errors.New("decryption failed")

	// Biometric errors.
	ErrInvalidModality = errors.New("invalid biometric modality")
	ErrEvidenceFetch   = errors.New("evidence fetch failed")
	ErrEvidenceDecode  = errors.New("evidence decode failed")
	ErrMatch           = errors.New("biometric match failed")

	// OTP errors.
	ErrOTPInvalid = errors.New("invalid or expired code")
)
