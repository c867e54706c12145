package domain

import "errors"

var (
	// ErrChallengeNotFound is returned when a challenge ID does not resolve.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrMalformedPattern indicates an admin-entered answer pattern that does
	// not compile. This is a data-entry fault, never an incorrect answer.
	ErrMalformedPattern = errors.New("malformed answer pattern")
	// ErrNoAnswerConfigured indicates a challenge with neither a literal
	// prefix nor a pattern; evaluation fails closed.
	ErrNoAnswerConfigured = errors.New("no answer configured")
)
