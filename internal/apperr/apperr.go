// Package apperr defines the error taxonomy shared by service packages and
// translated to HTTP status codes at the handler boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors for the conditions the API distinguishes. Service code
// wraps these with fmt.Errorf("...: %w", ...); handlers map them with
// errors.Is via Status.
var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown email or account.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate account.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCode marks a mismatched or consumed OTP.
	ErrInvalidCode = errors.New("invalid code")
	// ErrExpiredCode marks an OTP past its window.
	ErrExpiredCode = errors.New("expired code")
	// ErrOTPOutstanding marks account creation attempted before the
	// signup code was verified.
	ErrOTPOutstanding = errors.New("otp not verified")
	// ErrPayloadTooLarge marks an avatar upload over the size cap.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrRateLimited marks OTP issuance over the per-email budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable marks a store or collaborator outage.
	ErrUnavailable = errors.New("service unavailable")
)

// Status maps an error to its HTTP status code. Unrecognized errors are
// internal server errors; raw internals are never surfaced to clients.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExpiredCode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrOTPOutstanding):
		return http.StatusForbidden
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
