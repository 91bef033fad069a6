package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.openai.com"

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrMissingAPIKey      = errors.New("API key not configured")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Client implementa un backend OpenAI-compatible
type Client struct {
	*providers.BaseProvider
	httpClient *resty.Client
}

// NewClient crea un nuovo client OpenAI
func NewClient(opts providers.Options) *Client {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}

	client := &Client{
		BaseProvider: providers.NewBaseProvider(opts),
		httpClient:   resty.New(),
	}

	client.configureHTTPClient()
	return client
}

// configureHTTPClient configura il client HTTP con retry e timeout
func (c *Client) configureHTTPClient() {
	opts := c.Options()

	c.httpClient.
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 429 non si ritenta: la quota esaurita va gestita dall'orchestratore
			if r == nil {
				return err != nil && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if opts.APIKey != "" {
		c.httpClient.SetAuthToken(opts.APIKey)
	}

	c.httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", c.Name()).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("OpenAI API request")
		return nil
	})

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.Name()).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("OpenAI API response")
		return nil
	})
}

// Ask esegue una chat completion e converte ogni errore in una Response di fallimento
func (c *Client) Ask(ctx context.Context, prompt, contextText string) providers.Response {
	opts := c.Options()
	if opts.APIKey == "" {
		return c.Failure(ErrMissingAPIKey)
	}

	temperature := opts.Temperature
	maxTokens := opts.MaxTokens

	req := &ChatCompletionRequest{
		Model: opts.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: opts.SystemPrompt},
			{Role: "user", Content: providers.UserContent(prompt, contextText)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	var result ChatCompletionResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&errResp).
		Post("/v1/chat/completions")

	if err != nil {
		err = providers.ClassifyTransportError(err)
		log.Warn().Err(err).Str("provider", c.Name()).Msg("OpenAI request failed")
		return c.Failure(err)
	}

	if resp.IsError() {
		apiErr := c.handleErrorResponse(resp.StatusCode(), &errResp)
		log.Warn().Err(apiErr).Str("provider", c.Name()).Msg("OpenAI API error")
		return c.Failure(apiErr)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return c.Failure(providers.ErrEmptyAnswer)
	}

	return c.Success(result.Choices[0].Message.Content)
}

// IsAvailable è un controllo senza I/O: il backend è utilizzabile se la chiave è configurata
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.Options().APIKey != ""
}

// HealthCheck verifica che l'API risponda a /v1/models entro il probe timeout
func (c *Client) HealthCheck(ctx context.Context) bool {
	if !c.IsAvailable(ctx) {
		return false
	}

	_, err := c.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Str("provider", c.Name()).Msg("OpenAI health check failed")
		return false
	}
	return true
}

// ListModels restituisce gli ID dei modelli esposti dall'API
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Options().ProbeTimeout)
	defer cancel()

	var result ModelsResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get("/v1/models")

	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", providers.ClassifyTransportError(err))
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// handleErrorResponse gestisce gli errori dalla risposta API
func (c *Client) handleErrorResponse(statusCode int, errResp *ErrorResponse) error {
	message := errResp.Error.Message
	code, _ := errResp.Error.Code.(string)

	if statusCode == http.StatusTooManyRequests ||
		code == "insufficient_quota" ||
		errResp.Error.Type == "insufficient_quota" ||
		providers.IsQuotaError(message) {
		if message == "" {
			message = fmt.Sprintf("status %d", statusCode)
		}
		return fmt.Errorf("%w: %s", providers.ErrQuotaExceeded, message)
	}

	if message == "" {
		return fmt.Errorf("API error: status %d", statusCode)
	}

	baseErr := fmt.Errorf("%s (type: %s)", message, errResp.Error.Type)

	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, baseErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrModelNotFound, baseErr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, baseErr)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, baseErr)
	default:
		return baseErr
	}
}

var _ providers.Backend = (*Client)(nil)
