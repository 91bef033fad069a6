// Package mock fornisce un backend scriptabile per i test.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
)

// Call registra una singola invocazione di Ask
type Call struct {
	Prompt  string
	Context string
}

// Backend è un backend finto: restituisce le risposte in coda, poi quella di default
type Backend struct {
	name  string
	model string

	mu        sync.Mutex
	queue     []providers.Response
	fallback  providers.Response
	handler   func(prompt, contextText string) providers.Response
	available bool
	healthy   bool
	delay     time.Duration
	calls     []Call
}

// New crea un backend che risponde sempre con successo
func New(name string) *Backend {
	return &Backend{
		name:      name,
		model:     name + "-model",
		fallback:  providers.Success("ok from "+name, name, name+"-model"),
		available: true,
		healthy:   true,
	}
}

// Failing crea un backend che fallisce sempre con il messaggio indicato
func Failing(name, message string) *Backend {
	b := New(name)
	b.fallback = providers.Failure(errors.New(message), name)
	return b
}

// Name restituisce il nome del backend
func (b *Backend) Name() string { return b.name }

// Model restituisce il modello finto
func (b *Backend) Model() string { return b.model }

// Queue accoda risposte da restituire in ordine
func (b *Backend) Queue(responses ...providers.Response) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, responses...)
	return b
}

// QueueAnswers accoda risposte di successo
func (b *Backend) QueueAnswers(answers ...string) *Backend {
	for _, a := range answers {
		b.Queue(providers.Success(a, b.name, b.model))
	}
	return b
}

// QueueErrors accoda risposte di fallimento
func (b *Backend) QueueErrors(messages ...string) *Backend {
	for _, m := range messages {
		b.Queue(providers.Failure(errors.New(m), b.name))
	}
	return b
}

// SetDefault imposta la risposta restituita a coda vuota
func (b *Backend) SetDefault(resp providers.Response) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = resp
	return b
}

// SetHandler calcola la risposta in funzione del prompt; ha la precedenza sulla coda
func (b *Backend) SetHandler(fn func(prompt, contextText string) providers.Response) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
	return b
}

// SetAvailable cambia la disponibilità riportata da IsAvailable e HealthCheck
func (b *Backend) SetAvailable(available bool) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available = available
	b.healthy = available
	return b
}

// SetHealthy cambia solo il risultato di HealthCheck
func (b *Backend) SetHealthy(healthy bool) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = healthy
	return b
}

// SetDelay simula la latenza di rete
func (b *Backend) SetDelay(d time.Duration) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
	return b
}

// Ask restituisce la prossima risposta scriptata
func (b *Backend) Ask(ctx context.Context, prompt, contextText string) providers.Response {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Prompt: prompt, Context: contextText})
	delay := b.delay
	handler := b.handler
	var resp providers.Response
	if handler == nil {
		if len(b.queue) > 0 {
			resp = b.queue[0]
			b.queue = b.queue[1:]
		} else {
			resp = b.fallback
		}
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return providers.Failure(providers.ClassifyTransportError(ctx.Err()), b.name)
		}
	}

	if handler != nil {
		return handler(prompt, contextText)
	}
	return resp
}

// IsAvailable riporta la disponibilità configurata
func (b *Backend) IsAvailable(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// HealthCheck riporta lo stato di salute configurato
func (b *Backend) HealthCheck(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

// Calls restituisce una copia delle invocazioni registrate
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount restituisce il numero di invocazioni di Ask
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

var _ providers.Backend = (*Backend)(nil)
