// Package chat contiene gli helper del lato conversazionale: il client verso il
// gateway, le frasi mostrate all'utente e l'indicatore di scrittura.
package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized = errors.New("gateway rejected the API key")
	ErrBadStatus    = errors.New("unexpected gateway status")
)

// Request è la domanda inviata al gateway
type Request struct {
	Prompt    string `json:"prompt"`
	AgentType string `json:"agent_type,omitempty"`
	Context   string `json:"context,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
}

// Reply è la risposta pronta da mostrare all'utente
type Reply struct {
	Text      string
	AgentType string
	OK        bool
	// Cause è l'errore riportato dal gateway, solo per i log
	Cause string
}

type askResponse struct {
	Answer    string `json:"answer"`
	AgentType string `json:"agent_type"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

type streamLine struct {
	Chunk     string `json:"chunk"`
	Error     string `json:"error"`
	AgentType string `json:"agent_type"`
	Done      bool   `json:"done"`
}

// Client parla con il gateway HTTP
type Client struct {
	http *resty.Client
}

// NewClient crea un client verso baseURL con il segreto condiviso
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	h := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		h.SetHeader("X-API-Key", apiKey)
	}

	return &Client{http: h}
}

// request forza la decodifica JSON: resty altrimenti ignora SetResult
// quando la risposta arriva senza Content-Type. userID, se noto, separa il
// rate limit dei diversi utenti dietro la stessa chiave.
func (c *Client) request(ctx context.Context, userID int64) *resty.Request {
	r := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json")
	if userID != 0 {
		r.SetHeader("X-Request-User", strconv.FormatInt(userID, 10))
	}
	return r
}

// Ask invia la domanda e attende la risposta completa. Un errore del gateway
// diventa una frase amichevole; l'errore Go è riservato ai problemi di trasporto.
func (c *Client) Ask(ctx context.Context, req Request) (Reply, error) {
	req.Stream = false

	var body askResponse
	resp, err := c.request(ctx, req.UserID).
		SetBody(req).
		SetResult(&body).
		Post("/ask")
	if err != nil {
		return Reply{}, fmt.Errorf("ask request failed: %w", err)
	}
	if err := checkStatus(resp.StatusCode()); err != nil {
		return Reply{}, err
	}

	if body.Status != "success" {
		log.Warn().Str("agent", body.AgentType).Str("error", body.Error).Msg("Gateway returned an error")
		return Reply{Text: ErrorPhrase(), AgentType: body.AgentType, Cause: body.Error}, nil
	}

	return Reply{Text: body.Answer, AgentType: body.AgentType, OK: true}, nil
}

// AskStream legge la risposta NDJSON e chiama onChunk per ogni pezzo ricevuto
func (c *Client) AskStream(ctx context.Context, req Request, onChunk func(string)) (Reply, error) {
	req.Stream = true

	resp, err := c.request(ctx, req.UserID).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post("/ask")
	if err != nil {
		return Reply{}, fmt.Errorf("ask stream failed: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if err := checkStatus(resp.StatusCode()); err != nil {
		return Reply{}, err
	}

	var text strings.Builder
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg streamLine
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Warn().Str("line", string(line)).Msg("Invalid JSON chunk")
			continue
		}

		if msg.Chunk != "" {
			text.WriteString(msg.Chunk)
			if onChunk != nil {
				onChunk(msg.Chunk)
			}
		}

		if msg.Done {
			if msg.Error != "" {
				log.Warn().Str("agent", msg.AgentType).Str("error", msg.Error).Msg("Gateway returned an error")
				return Reply{Text: ErrorPhrase(), AgentType: msg.AgentType, Cause: msg.Error}, nil
			}
			return Reply{Text: text.String(), AgentType: msg.AgentType, OK: true}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Reply{}, fmt.Errorf("read stream: %w", err)
	}
	return Reply{}, fmt.Errorf("stream ended without done marker: %w", io.ErrUnexpectedEOF)
}

// DetectType chiede al gateway la classificazione della domanda
func (c *Client) DetectType(ctx context.Context, query string) (string, error) {
	var body struct {
		Type string `json:"type"`
	}
	resp, err := c.request(ctx, 0).
		SetBody(map[string]string{"query": query}).
		SetResult(&body).
		Post("/detect_type")
	if err != nil {
		return "", fmt.Errorf("detect request failed: %w", err)
	}
	if err := checkStatus(resp.StatusCode()); err != nil {
		return "", err
	}
	return body.Type, nil
}

// History restituisce gli ultimi n scambi salvati, dal più vecchio
func (c *Client) History(ctx context.Context, chatID, userID int64, n int) ([]models.ConversationTurn, error) {
	var body struct {
		Turns []models.ConversationTurn `json:"turns"`
	}
	resp, err := c.request(ctx, userID).
		SetQueryParams(ownerParams(chatID, userID)).
		SetQueryParam("n", strconv.Itoa(n)).
		SetResult(&body).
		Get("/history")
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	if err := checkStatus(resp.StatusCode()); err != nil {
		return nil, err
	}
	return body.Turns, nil
}

// ClearMemory cancella la memoria dell'utente sul gateway
func (c *Client) ClearMemory(ctx context.Context, chatID, userID int64) error {
	resp, err := c.request(ctx, userID).
		SetQueryParams(ownerParams(chatID, userID)).
		Delete("/memory")
	if err != nil {
		return fmt.Errorf("clear request failed: %w", err)
	}
	return checkStatus(resp.StatusCode())
}

// SaveProfile salva il profilo e restituisce quello memorizzato
func (c *Client) SaveProfile(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	var saved models.Profile
	resp, err := c.request(ctx, profile.UserID).
		SetBody(profile).
		SetResult(&saved).
		Put("/profile")
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	if err := checkStatus(resp.StatusCode()); err != nil {
		return nil, err
	}
	return &saved, nil
}

func ownerParams(chatID, userID int64) map[string]string {
	return map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"user_id": strconv.FormatInt(userID, 10),
	}
}

// FormatHistory rende gli scambi come elenco numerato per l'utente
func FormatHistory(turns []models.ConversationTurn) string {
	if len(turns) == 0 {
		return "История пустая 😕"
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. Ты: %s\n   AI: %s", i+1, turn.UserMessage, turn.AIResponse)
	}
	return b.String()
}

// GetJSON legge un endpoint di sola lettura del gateway (/status, /health, ...)
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.request(ctx, 0).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	return checkStatus(resp.StatusCode())
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 400:
		return fmt.Errorf("%w: %d", ErrBadStatus, code)
	}
	return nil
}
