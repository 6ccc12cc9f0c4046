package providers

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyCompletion is returned when a successful response carries no choices
var ErrEmptyCompletion = errors.New("completion contained no choices")

// ChatRequest is a two-message exchange: a system instruction and the user prompt.
type ChatRequest struct {
	Model        string // empty uses the provider's configured model
	SystemPrompt string
	UserPrompt   string
}

// ChatResponse is a normalized provider response.
// StatusCode is always set; Content is only meaningful when StatusCode is 200.
type ChatResponse struct {
	StatusCode      int
	Content         string
	Model           string
	ProviderLatency time.Duration
	InputTokens     int
	OutputTokens    int
}

// Succeeded reports whether the provider accepted the request
func (r *ChatResponse) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Provider is implemented by each concrete LLM gateway.
type Provider interface {
	// Name returns the display name of this provider
	Name() string

	// Chat sends a chat completion request.
	// A non-success HTTP status is reported through ChatResponse.StatusCode with a nil error;
	// an error means no status was received at all (transport failure, malformed body).
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Close performs cleanup when the provider is no longer needed
	Close() error
}
