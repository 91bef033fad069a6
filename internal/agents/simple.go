package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// SimpleDescriptor descrive l'agente di fallback
var SimpleDescriptor = Descriptor{
	Name:        AgentSimple,
	Description: "Агент для простых вопросов, общих консультаций, причин, рекомендаций.",
	Keywords:    []string{"причин", "рекомендац", "науч", "что будет если", "правда ли", "почему"},
}

// SimpleAgent inoltra la domanda al modello senza scomposizione
type SimpleAgent struct {
	llm LLM
}

// NewSimpleAgent crea un nuovo SimpleAgent
func NewSimpleAgent(llm LLM) *SimpleAgent {
	return &SimpleAgent{llm: llm}
}

// Descriptor restituisce i metadati dell'agente
func (a *SimpleAgent) Descriptor() Descriptor {
	return SimpleDescriptor
}

// Process restituisce la risposta del modello così com'è
func (a *SimpleAgent) Process(ctx context.Context, query string) Outcome {
	// domande sulle calorie con parametri completi non richiedono il modello
	if strings.Contains(strings.ToLower(query), "калор") {
		if params, ok := ExtractBodyParams(query); ok {
			log.Debug().Str("agent", AgentSimple).Msg("Calorie parameters found, computing locally")
			return Success(params.FormatKBJU())
		}
	}

	return askLLM(ctx, a.llm, AgentSimple, query, "")
}
