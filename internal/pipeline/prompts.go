package pipeline

import (
	"fmt"
	"strings"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline/prompts"
)

// Prompts contains the system prompts loaded from embedded files.
type Prompts struct {
	Schema    string // View description injected into Generate
	Generate  string // SQL generation
	Interpret string // Turning query rows into an answer
	General   string // Conversational replies without data
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Schema, err = loadPrompt("SCHEMA.md"); err != nil {
		return nil, fmt.Errorf("failed to load SCHEMA: %w", err)
	}
	if p.Generate, err = loadPrompt("GENERATE_SQL.md"); err != nil {
		return nil, fmt.Errorf("failed to load GENERATE_SQL: %w", err)
	}
	if p.Interpret, err = loadPrompt("INTERPRET.md"); err != nil {
		return nil, fmt.Errorf("failed to load INTERPRET: %w", err)
	}
	if p.General, err = loadPrompt("GENERAL.md"); err != nil {
		return nil, fmt.Errorf("failed to load GENERAL: %w", err)
	}

	p.Generate = strings.Replace(p.Generate, "{{SCHEMA}}", p.Schema, 1)

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
