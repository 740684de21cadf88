package domain

import "errors"

var (
	// ErrNotFound is returned when the backend has no such resource.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound is returned when a quiz cannot be resolved.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound is returned when a question cannot be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUnauthorized is returned when the bearer token is missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned when login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrServiceUnavailable is returned when the backend cannot be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNoQuestions marks a session whose quiz has no resolvable questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrResetFailed is returned when prior answers or scores could not be cleared.
	ErrResetFailed = errors.New("failed to reset previous attempt")
	// ErrSubmitInProgress is returned to a submit that lost the race to another one.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrSubmissionFailed is returned when results could not be confirmed; the attempt may be retried.
	ErrSubmissionFailed = errors.New("failed to submit quiz")
	// ErrSessionActive is returned when the quiz is already being taken elsewhere.
	ErrSessionActive = errors.New("quiz session already in progress")
)
