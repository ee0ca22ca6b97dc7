package config

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Model capabilities.
const (
	CapabilityText      = "text"
	CapabilityJSON      = "json"
	CapabilityGrounding = "grounding"
	CapabilityImage     = "image"
)

//go:embed models.yaml
var modelsYAML []byte

// ModelInfo describes a known model's provider, limits and pricing.
type ModelInfo struct {
	Name            string   `yaml:"name"`
	Provider        string   `yaml:"provider"`
	ContextWindow   int      `yaml:"context_window"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	InputPerMTok    float64  `yaml:"input_per_mtok"`
	OutputPerMTok   float64  `yaml:"output_per_mtok"`
	Capabilities    []string `yaml:"capabilities"`
}

// HasCapability reports whether the model advertises capability c.
func (m ModelInfo) HasCapability(c string) bool {
	return slices.Contains(m.Capabilities, c)
}

// CostUSD estimates the cost of a call from token counts.
func (m ModelInfo) CostUSD(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)*m.InputPerMTok + float64(completionTokens)*m.OutputPerMTok) / 1_000_000
}

type modelRegistry struct {
	Models []ModelInfo `yaml:"models"`
}

//nolint:gochecknoglobals // parsed once from the embedded registry
var (
	knownModels     map[string]ModelInfo
	knownModelsOnce sync.Once
)

// KnownModels returns the embedded model registry keyed by model name.
func KnownModels() map[string]ModelInfo {
	knownModelsOnce.Do(func() {
		models, err := parseModelRegistry(modelsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded models.yaml is invalid: %v", err))
		}
		knownModels = models
	})
	return knownModels
}

func parseModelRegistry(data []byte) (map[string]ModelInfo, error) {
	var reg modelRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse model registry: %w", err)
	}
	out := make(map[string]ModelInfo, len(reg.Models))
	for _, m := range reg.Models {
		if m.Name == "" || m.Provider == "" {
			return nil, fmt.Errorf("model registry entry missing name or provider: %+v", m)
		}
		if _, dup := out[m.Name]; dup {
			return nil, fmt.Errorf("duplicate model %s in registry", m.Name)
		}
		out[m.Name] = m
	}
	return out, nil
}

// GetModelInfo returns registry info for a model, if known.
func GetModelInfo(name string) (ModelInfo, bool) {
	info, ok := KnownModels()[name]
	return info, ok
}
