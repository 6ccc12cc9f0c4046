package qa

import "errors"

var (
	// ErrQuotaExceeded is returned when the user has used up today's questions
	ErrQuotaExceeded = errors.New("daily question limit reached")
	// ErrUnknownPrompt is returned for a subject/task pair missing from the prompt table
	ErrUnknownPrompt = errors.New("unknown subject or task")
	// ErrEmptyQuestion is returned when the question is blank
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrInferenceUnavailable is returned when the inference service gave no usable response
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	// ErrUnauthenticated is returned when no valid session is supplied
	ErrUnauthenticated = errors.New("not signed in")
)
