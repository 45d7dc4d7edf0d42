package domain

import "errors"

var (
	// ErrUnauthorized is returned when the actor lacks the role an action requires.
	ErrUnauthorized = errors.New("actor is not authorized for this action")
	// ErrUnauthenticated is returned when no identity accompanies a request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrAttemptsExhausted is returned when a candidate may not start another exam.
	ErrAttemptsExhausted = errors.New("exam attempts exhausted")
	// ErrInvalidQuestionSet indicates a malformed or insufficient question bank.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrPersistence wraps any failed write of results or certificates; callers may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrDuplicateCertificate signals a uniqueness conflict on certificate insert.
	ErrDuplicateCertificate = errors.New("duplicate certificate")
	// ErrNotEligible is returned when a certificate is requested for a result that cannot hold one.
	ErrNotEligible = errors.New("exam result is not eligible for a certificate")
	// ErrInvalidStatusTransition rejects certificate status changes outside active <-> revoked.
	ErrInvalidStatusTransition = errors.New("invalid certificate status transition")
	ErrNotFound                = errors.New("record not found")
	// ErrConflict reports a uniqueness violation on a user record.
	ErrConflict = errors.New("record already exists")
	// ErrInvalidCredentials is returned by login for unknown DNI or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrSessionNotFound is returned when an exam session does not exist or was discarded.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrSessionClosed is returned when a session no longer accepts a submission.
	ErrSessionClosed = errors.New("exam session is closed")
	// ErrAnswerOutOfRange rejects answers outside the question or option bounds.
	ErrAnswerOutOfRange = errors.New("answer out of range")
)
