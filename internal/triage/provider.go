// Package triage asks a language model for a first reading of a failed run
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/v0xg/surveydriver/internal/scenario"
)

// Provider writes a short triage note for an incident
type Provider interface {
	Summarize(ctx context.Context, inc scenario.Incident) (string, error)
}

// NewProvider creates a provider by name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// Handler turns incidents into triage notes
type Handler struct {
	Provider Provider
	// Dir receives <prefix>-triage.md files; empty means stdout only
	Dir     string
	Prefix  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// HandleIncident asks the provider for a note and stores it
func (h *Handler) HandleIncident(inc scenario.Incident) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("→ Asking for a triage note... ")
	note, err := h.Provider.Summarize(ctx, inc)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("triage: %w", err)
	}
	fmt.Println("done")

	if h.Dir == "" {
		fmt.Println(note)
		return nil
	}
	if err := os.MkdirAll(h.Dir, 0755); err != nil {
		return fmt.Errorf("triage: %w", err)
	}
	path := filepath.Join(h.Dir, fmt.Sprintf("%s%s-%d-triage.md", h.Prefix, inc.Scenario, inc.Iteration))
	if err := os.WriteFile(path, []byte(note+"\n"), 0644); err != nil {
		return fmt.Errorf("triage: %w", err)
	}
	if h.Logger != nil {
		h.Logger.Info("triage note saved", "path", path)
	}
	return nil
}
