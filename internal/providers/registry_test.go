package providers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/mock"
)

func TestRegistry_Register(t *testing.T) {
	registry := providers.NewRegistry()

	err := registry.Register(mock.New("test"), "mock")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 provider, got %d", registry.Count())
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	registry := providers.NewRegistry()

	registry.Register(mock.New("test"), "mock")

	err := registry.Register(mock.New("test"), "mock")
	if !errors.Is(err, providers.ErrProviderAlreadyExists) {
		t.Errorf("Expected ErrProviderAlreadyExists, got %v", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(mock.New("test"), "mock")

	retrieved, err := registry.Get("test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if retrieved.Name() != "test" {
		t.Errorf("Expected provider 'test', got '%s'", retrieved.Name())
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	registry := providers.NewRegistry()

	_, err := registry.Get("nonexistent")
	if !errors.Is(err, providers.ErrProviderNotFound) {
		t.Errorf("Expected ErrProviderNotFound, got %v", err)
	}
}

func TestRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	registry := providers.NewRegistry()

	for _, name := range []string{"ollama", "openai", "backup"} {
		if err := registry.Register(mock.New(name), "mock"); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	list := registry.List()
	want := []string{"ollama", "openai", "backup"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d providers, got %d", len(want), len(list))
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], list[i])
		}
	}
}

func TestRegistry_HealthCheckProbesAll(t *testing.T) {
	registry := providers.NewRegistry()

	registry.Register(mock.New("up"), "mock")
	registry.Register(mock.New("down").SetAvailable(false), "mock")

	results := registry.HealthCheck(context.Background())

	if !results["up"] {
		t.Error("Expected 'up' to be healthy")
	}
	if results["down"] {
		t.Error("Expected 'down' to be unhealthy")
	}

	meta, err := registry.GetMetadata("down")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.LastHealthCheck.IsZero() {
		t.Error("Expected LastHealthCheck to be set")
	}
}

func TestRegistry_RecordMetrics(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(mock.New("test"), "mock")

	registry.RecordSuccess("test", 100*time.Millisecond)
	registry.RecordSuccess("test", 200*time.Millisecond)
	registry.RecordError("test")

	meta, _ := registry.GetMetadata("test")
	if meta.SuccessCount != 2 {
		t.Errorf("Expected 2 successes, got %d", meta.SuccessCount)
	}
	if meta.ErrorCount != 1 {
		t.Errorf("Expected 1 error, got %d", meta.ErrorCount)
	}
	if meta.AvgLatency != 150*time.Millisecond {
		t.Errorf("Expected avg latency 150ms, got %v", meta.AvgLatency)
	}
}

func TestRegistry_Models(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(mock.New("a"), "mock")

	models := registry.Models()
	if models["a"] != "a-model" {
		t.Errorf("Expected a-model, got %q", models["a"])
	}
}
