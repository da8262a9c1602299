// Package handlers defines the transport-level error codes used across all
// API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic handling while the accompanying message stays human-readable.
// Business-rule failures never use these codes; they travel in the
// success=false envelope instead (see response.go).
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
)
