package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"
	openRouterDefaultModel   = "deepseek/deepseek-chat:free"
	openRouterTimeout        = 60 * time.Second

	statusCodeMarker = "status code: "
)

// OpenRouterConfig holds settings for the OpenRouter provider
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible chat completions API
type OpenRouterProvider struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
}

// NewOpenRouterProvider creates a new OpenRouter provider instance
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for OpenRouter provider")
	}

	baseURL := openRouterDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := openRouterDefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	timeout := openRouterTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = httpClient

	return &OpenRouterProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: httpClient,
		model:      model,
	}, nil
}

// Name returns the provider name
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Model returns the configured model identifier
func (p *OpenRouterProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request to OpenRouter
func (p *OpenRouterProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	})
	latency := time.Since(start)

	if err != nil {
		if status := statusFromError(err); status != 0 {
			return &ChatResponse{
				StatusCode:      status,
				Model:           model,
				ProviderLatency: latency,
			}, nil
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	return &ChatResponse{
		StatusCode:      http.StatusOK,
		Content:         resp.Choices[0].Message.Content,
		Model:           resp.Model,
		ProviderLatency: latency,
		InputTokens:     resp.Usage.PromptTokens,
		OutputTokens:    resp.Usage.CompletionTokens,
	}, nil
}

// Close cleans up resources
func (p *OpenRouterProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// statusFromError extracts the HTTP status the gateway answered with, or 0 if none
func statusFromError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	// non-JSON error bodies come back as a plain error: "error, status code: 502, ..."
	msg := err.Error()
	if i := strings.Index(msg, statusCodeMarker); i >= 0 {
		digits := msg[i+len(statusCodeMarker):]
		end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
		if end > 0 {
			digits = digits[:end]
		}
		if code, convErr := strconv.Atoi(digits); convErr == nil {
			return code
		}
	}
	return 0
}
