package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz document could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrVersionConflict is returned when a change carries a stale quiz version.
	ErrVersionConflict = errors.New("quiz version conflict")
	// ErrQuestionNotFound indicates a question ID does not belong to the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned for operations on a completed or expired session.
	ErrSessionNotActive = errors.New("session is no longer active")
	// ErrActiveSessionExists is returned when a user starts a quiz they already
	// have an in-progress session for. Clients recover by re-fetching their
	// session list and adopting the existing entry.
	ErrActiveSessionExists = errors.New("you already have an active session for this quiz")
	// ErrInvalidSubmission indicates an answer payload that is neither a
	// selection of option IDs nor a text answer.
	ErrInvalidSubmission = errors.New("invalid answer submission")
	// ErrResultNotFound indicates no result exists for the session yet.
	ErrResultNotFound = errors.New("quiz result not found")
)
