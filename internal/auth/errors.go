package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials matches any rejection of credentials or tokens by the auth service
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingTokens is returned when a token pair is incomplete
	ErrMissingTokens = errors.New("access token and refresh token are both required")
)

// APIError is a non-success response from the auth service.
// Its message is the service's own text, suitable for showing to the user.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is reports client-side rejections as ErrInvalidCredentials
func (e *APIError) Is(target error) bool {
	if target != ErrInvalidCredentials {
		return false
	}
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// errorBody covers the error shapes returned by the different auth endpoints
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Msg, b.ErrorDescription, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
