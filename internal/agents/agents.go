package agents

import (
	"context"
	"strings"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/rs/zerolog/log"
)

// Nomi degli agenti registrati
const (
	AgentNutrition = "nutrition"
	AgentPlanning  = "planning"
	AgentSimple    = "simple"

	// AgentAuto chiede al Manager di classificare la domanda
	AgentAuto = "auto"
)

// ErrorMarker è il prefisso testuale che segnala un errore al confine esterno
const ErrorMarker = "Ошибка:"

// Descriptor contiene i metadati immutabili di un agente
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Matches verifica se la domanda, già in minuscolo, contiene una delle keyword
func (d Descriptor) Matches(lowerQuery string) bool {
	for _, kw := range d.Keywords {
		if strings.Contains(lowerQuery, kw) {
			return true
		}
	}
	return false
}

// Agent è un'unità di policy legata a un insieme di keyword
type Agent interface {
	// Descriptor restituisce nome, descrizione e keyword dell'agente
	Descriptor() Descriptor

	// Process elabora la domanda; non va in panic attraverso il suo confine
	Process(ctx context.Context, query string) Outcome
}

// LLM è la capacità di completamento testuale usata dagli agenti.
// È implementata dall'orchestratore e dai singoli backend.
type LLM interface {
	Ask(ctx context.Context, prompt, contextText string) providers.Response
}

// Outcome è il risultato di un agente o di un tool: successo o fallimento
type Outcome struct {
	text   string
	reason string
	failed bool
}

// Success crea un Outcome riuscito
func Success(text string) Outcome {
	return Outcome{text: text}
}

// Failure crea un Outcome fallito
func Failure(reason string) Outcome {
	if strings.TrimSpace(reason) == "" {
		reason = "unknown error"
	}
	return Outcome{reason: reason, failed: true}
}

// OK riporta se l'Outcome è un successo
func (o Outcome) OK() bool {
	return !o.failed
}

// Text restituisce il testo di un successo
func (o Outcome) Text() string {
	return o.text
}

// Reason restituisce il motivo di un fallimento
func (o Outcome) Reason() string {
	return o.reason
}

// Marked rende l'Outcome con la convenzione testuale del marker di errore
func (o Outcome) Marked() string {
	if o.failed {
		return ErrorMarker + " " + o.reason
	}
	return o.text
}

// ParseMarked interpreta un testo che può iniziare con il marker di errore
func ParseMarked(text string) Outcome {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, ErrorMarker) {
		return Failure(strings.TrimSpace(strings.TrimPrefix(trimmed, ErrorMarker)))
	}
	return Success(text)
}

// askLLM converte una Response del backend in un Outcome
func askLLM(ctx context.Context, llm LLM, agent, prompt, contextText string) Outcome {
	resp := llm.Ask(ctx, prompt, contextText)
	if !resp.OK() {
		log.Warn().
			Str("agent", agent).
			Str("provider", resp.Provider).
			Str("error", resp.Error).
			Msg("LLM call failed")
		return Failure(resp.Error)
	}
	if strings.TrimSpace(resp.Answer) == "" {
		return Failure(providers.ErrEmptyAnswer.Error())
	}
	// il marker di errore vale solo in uscita dal router, non sul testo del modello
	return Success(resp.Answer)
}
