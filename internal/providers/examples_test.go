package providers_test

import (
	"context"
	"fmt"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/ollama"
	"github.com/biodoia/nutrillm/internal/providers/openai"
)

// Example di utilizzo base del client Ollama
func Example_ollamaClientBasic() {
	client := ollama.NewClient(providers.Options{
		BaseURL:      "http://localhost:11434",
		Model:        "llama3.1",
		SystemPrompt: "Ты эксперт по питанию и фитнесу.",
		Temperature:  0.7,
		MaxTokens:    800,
		Timeout:      120 * time.Second,
	})

	resp := client.Ask(context.Background(), "Сколько белка нужно после тренировки?", "")
	if !resp.OK() {
		fmt.Printf("Error: %s\n", resp.Error)
		return
	}

	fmt.Printf("[%s/%s] %s\n", resp.Provider, resp.Model, resp.Answer)
}

// Example di registry con ordine di failover
func Example_registry() {
	registry := providers.NewRegistry()

	_ = registry.Register(ollama.NewClient(providers.Options{}), "ollama")
	_ = registry.Register(openai.NewClient(providers.Options{APIKey: "sk-your-api-key"}), "openai")

	fmt.Println(registry.List())
}
