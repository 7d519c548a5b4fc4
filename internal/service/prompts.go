package service

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

const (
	promptEvaluate   = "evaluate"
	promptParameters = "parameters"
	promptRephrase   = "rephrase"
)

type promptTemplate struct {
	Prompt string `yaml:"prompt"`
}

// prompts maps template name to its raw text with {{slot}} placeholders.
type prompts map[string]string

func loadPrompts() (prompts, error) {
	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	out := prompts{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := promptFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
		}
		var tpl promptTemplate
		if err := yaml.Unmarshal(data, &tpl); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", entry.Name(), err)
		}
		out[strings.TrimSuffix(entry.Name(), ".yaml")] = tpl.Prompt
	}
	return out, nil
}

// build fills the named template. Slots are given as key/value pairs.
func (p prompts) build(name string, slots ...string) (string, error) {
	tpl, ok := p[name]
	if !ok {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	pairs := make([]string, 0, len(slots))
	for i := 0; i+1 < len(slots); i += 2 {
		pairs = append(pairs, "{{"+slots[i]+"}}", slots[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}
