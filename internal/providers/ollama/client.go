package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "http://localhost:11434"

var ErrModelNotInstalled = errors.New("model not installed")

// Client implementa un backend Ollama locale
type Client struct {
	*providers.BaseProvider
	httpClient *resty.Client
}

// NewClient crea un nuovo client Ollama
func NewClient(opts providers.Options) *Client {
	if opts.Name == "" {
		opts.Name = "ollama"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = "llama3.1"
	}

	client := &Client{
		BaseProvider: providers.NewBaseProvider(opts),
		httpClient:   resty.New(),
	}

	client.configureHTTPClient()
	return client
}

func (c *Client) configureHTTPClient() {
	opts := c.Options()

	c.httpClient.
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return err != nil && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", c.Name()).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("Ollama request")
		return nil
	})
}

// Ask esegue una chat non in streaming su /api/chat
func (c *Client) Ask(ctx context.Context, prompt, contextText string) providers.Response {
	opts := c.Options()

	req := &ChatRequest{
		Model: opts.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: opts.SystemPrompt},
			{Role: "user", Content: providers.UserContent(prompt, contextText)},
		},
		Stream: false,
		Options: ModelOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	var result ChatResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&errResp).
		Post("/api/chat")

	if err != nil {
		err = providers.ClassifyTransportError(err)
		log.Warn().Err(err).Str("provider", c.Name()).Msg("Ollama request failed")
		return c.Failure(err)
	}

	if resp.IsError() {
		apiErr := c.handleErrorResponse(resp.StatusCode(), &errResp)
		log.Warn().Err(apiErr).Str("provider", c.Name()).Msg("Ollama API error")
		return c.Failure(apiErr)
	}

	if strings.TrimSpace(result.Message.Content) == "" {
		return c.Failure(providers.ErrEmptyAnswer)
	}

	return c.Success(result.Message.Content)
}

// IsAvailable verifica che il server Ollama risponda su /api/tags
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Str("provider", c.Name()).Msg("Ollama not reachable")
		return false
	}
	return true
}

// HealthCheck equivale a IsAvailable
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.IsAvailable(ctx)
}

// ListModels restituisce i modelli installati localmente
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Options().ProbeTimeout)
	defer cancel()

	var result TagsResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get("/api/tags")

	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", providers.ClassifyTransportError(err))
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	return result.Models, nil
}

// HasModel verifica se il modello configurato è installato
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}

	want := c.Model()
	for _, m := range models {
		if m.Name == want || m.Model == want || strings.TrimSuffix(m.Name, ":latest") == want {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) handleErrorResponse(statusCode int, errResp *ErrorResponse) error {
	message := errResp.Error
	if message == "" {
		message = fmt.Sprintf("status %d", statusCode)
	}

	if statusCode == 429 || providers.IsQuotaError(message) {
		return fmt.Errorf("%w: %s", providers.ErrQuotaExceeded, message)
	}
	if statusCode == 404 {
		return fmt.Errorf("%w: %s", ErrModelNotInstalled, message)
	}
	return fmt.Errorf("ollama error (status %d): %s", statusCode, message)
}

var _ providers.Backend = (*Client)(nil)
