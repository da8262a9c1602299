// Package services defines the business logic for creations and AI
// generation. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; the
// handler layer translates them into the user-facing response envelope.
package services

import "errors"

var (
	// ErrPremiumRequired is returned when a premium-only operation is
	// requested on the free plan.
	ErrPremiumRequired = errors.New("premium plan required")

	// ErrQuotaExceeded is returned when a free-plan caller has used up the
	// free generation quota.
	ErrQuotaExceeded = errors.New("free usage limit exhausted")

	// ErrCreationNotFound indicates that the requested creation does not
	// exist or is not accessible to the current user.
	ErrCreationNotFound = errors.New("creation not found")

	// ErrEmptyPrompt is returned when a generation request contains an empty
	// prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the maximum configured
	// length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrInvalidObjectName is returned when the object-removal target is
	// empty or contains more than one word.
	ErrInvalidObjectName = errors.New("object name must be a single word")

	// ErrFileTooLarge is returned when an uploaded file exceeds the
	// configured size cap.
	ErrFileTooLarge = errors.New("file size exceeds the upload limit")

	// ErrNotPDF is returned when the resume upload is not a PDF document.
	ErrNotPDF = errors.New("resume must be a PDF file")

	// ErrMissingFile is returned when a file-based operation receives no
	// file payload.
	ErrMissingFile = errors.New("file is required")
)
