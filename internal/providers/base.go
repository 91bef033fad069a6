package providers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrQuotaExceeded indica che il provider ha esaurito quota o crediti
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indica che il provider non ha risposto entro il tempo massimo
	ErrTimeout = errors.New("request timeout")

	// ErrEmptyAnswer indica una risposta senza contenuto testuale
	ErrEmptyAnswer = errors.New("empty answer")
)

// NoneProvider è il tag usato quando nessun backend è disponibile
const NoneProvider = "none"

// Backend è l'interfaccia base per tutti i backend LLM.
//
// Ask non restituisce mai un errore Go: ogni errore di trasporto o di parsing
// viene convertito in una Response di fallimento.
type Backend interface {
	// Name restituisce il nome del provider (es. "openai", "ollama")
	Name() string

	// Model restituisce il modello configurato
	Model() string

	// Ask esegue una singola richiesta di completamento
	Ask(ctx context.Context, prompt, contextText string) Response

	// IsAvailable è un controllo veloce di disponibilità
	IsAvailable(ctx context.Context) bool

	// HealthCheck verifica lo stato di salute del provider
	HealthCheck(ctx context.Context) bool
}

// Response è il risultato di una chiamata a un backend: successo o fallimento, mai entrambi.
type Response struct {
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// Success crea una Response di successo
func Success(answer, provider, model string) Response {
	return Response{
		Answer:   answer,
		Provider: provider,
		Model:    model,
	}
}

// Failure crea una Response di fallimento
func Failure(err error, provider string) Response {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Response{
		Error:    msg,
		Provider: provider,
	}
}

// OK riporta se la risposta è un successo
func (r Response) OK() bool {
	return r.Error == ""
}

// Err restituisce l'errore della risposta, nil in caso di successo
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Provider, r.Error)
}

// 429 solo come parola intera: "4290 tokens" non è un errore di quota
var quotaPattern = regexp.MustCompile(`(?i)\bquota\b|insufficient_quota|\b429\b|\brate[ _-]?limit`)

// IsQuotaError verifica se il testo di errore indica quota esaurita o rate limit
func IsQuotaError(text string) bool {
	return quotaPattern.MatchString(text)
}

// Options contiene i parametri comuni a tutti i backend
type Options struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// MaxRetries per errori 5xx e di rete (0 = nessun retry)
	MaxRetries int

	// Timeout per le chiamate di generazione
	Timeout time.Duration

	// ProbeTimeout per i controlli di disponibilità
	ProbeTimeout time.Duration
}

// BaseProvider fornisce funzionalità comuni per i backend
type BaseProvider struct {
	opts Options
}

// NewBaseProvider crea un nuovo BaseProvider applicando i default
func NewBaseProvider(opts Options) *BaseProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	return &BaseProvider{opts: opts}
}

// Name restituisce il nome del provider
func (b *BaseProvider) Name() string {
	return b.opts.Name
}

// Model restituisce il modello configurato
func (b *BaseProvider) Model() string {
	return b.opts.Model
}

// Options restituisce una copia delle opzioni
func (b *BaseProvider) Options() Options {
	return b.opts
}

// Success formatta una risposta di successo per questo provider
func (b *BaseProvider) Success(answer string) Response {
	return Success(strings.TrimSpace(answer), b.opts.Name, b.opts.Model)
}

// Failure formatta una risposta di errore per questo provider
func (b *BaseProvider) Failure(err error) Response {
	return Failure(err, b.opts.Name)
}

// UserContent compone il messaggio utente con il contesto opzionale
func UserContent(prompt, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return prompt
	}
	return fmt.Sprintf("Контекст: %s\n\nВопрос: %s", contextText, prompt)
}

// ClassifyTransportError normalizza gli errori di trasporto
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
