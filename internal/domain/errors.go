package domain

import "errors"

var (
	// ErrValidation marks missing or malformed request fields.
	ErrValidation = errors.New("invalid request")
	// ErrAttemptNotFound is returned when no attempt has the given id.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrTestNotFound indicates the test is missing from the catalog.
	ErrTestNotFound = errors.New("test not found")
	// ErrForbidden is returned when the caller does not own the attempt.
	ErrForbidden = errors.New("attempt belongs to another user")
	// ErrAlreadyCompleted guards against replayed or concurrent submissions.
	ErrAlreadyCompleted = errors.New("attempt already completed")
	// ErrExpired means the time limit passed; the attempt is timed out.
	ErrExpired = errors.New("time limit for this attempt has expired")
	// ErrNoQuestions indicates the test has no gradable content.
	ErrNoQuestions = errors.New("test has no questions")
	// ErrStorageUnavailable is the opaque kind for backing-store faults.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransitionConflict is returned by attempt stores when the current
	// status no longer matches the expected one.
	ErrTransitionConflict = errors.New("attempt status changed concurrently")
	// ErrMalformedDocument is returned when a stored record fails validation.
	ErrMalformedDocument = errors.New("malformed document")
)
