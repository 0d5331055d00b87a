package domain

import "errors"

var (
	// ErrUnknownAlertType is returned when a request names an alert type
	// outside the closed enum.
	ErrUnknownAlertType = errors.New("unknown alert type")
	// ErrQuizNotFound indicates a quiz id could not be resolved to a session.
	ErrQuizNotFound = errors.New("quiz not found")
)
