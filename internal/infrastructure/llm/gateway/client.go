// Package gateway talks to an OpenAI-compatible chat completions endpoint.
// The classifier, extractor and analysis engine adapters all share one
// Client and one resilience executor.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/medvault/clinical-ingest/internal/infrastructure/resilience"
)

const defaultRequestTimeout = 30 * time.Second

type Config struct {
	BaseURL string
	APIKey  string

	ClassifyModel string
	ExtractModel  string
	AnalyzeModel  string

	RequestTimeout time.Duration
	Executor       *resilience.Executor
}

type Client struct {
	baseURL string
	apiKey  string

	classifyModel string
	extractModel  string
	analyzeModel  string

	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		classifyModel: cfg.ClassifyModel,
		extractModel:  cfg.ExtractModel,
		analyzeModel:  cfg.AnalyzeModel,
		httpClient:    &http.Client{Timeout: timeout},
		executor:      cfg.Executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// complete runs one chat completion under the shared retry/breaker policy and
// returns the first choice's message content.
func (c *Client) complete(ctx context.Context, operation string, req chatRequest) (string, error) {
	if c.executor == nil {
		content, err := c.postChat(ctx, operation, req)
		return content, wrapTemporaryIfNeeded(operation, err)
	}

	var content string
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.postChat(ctx, operation, req)
		return callErr
	}, classifyGatewayError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return content, nil
}
