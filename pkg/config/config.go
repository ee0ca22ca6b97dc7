// Package config provides configuration loading, validation, and credential lookup.
// Configuration lives in <projectDir>/.omniagent/config.json and is created with
// defaults on first run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"omniagent/pkg/logx"
)

// Project config constants.
const (
	ProjectConfigDir      = ".omniagent"
	ProjectConfigFilename = "config.json"
	SchemaVersion         = "1.0"
)

// Provider names.
const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Environment variables consulted for credentials.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvLegacyAPIKey    = "API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvYouTubeAPIKey   = "YOUTUBE_API_KEY"
)

// Default model names per capability tier.
const (
	DefaultTextModel      = "gemini-3-flash-preview"
	DefaultReasoningModel = "gemini-3-pro-preview"
	DefaultImageModel     = "gemini-2.5-flash-image"
)

// Defaults for the remaining sections.
const (
	DefaultVideoEndpoint      = "https://www.googleapis.com/youtube/v3/search"
	DefaultVideoMaxResults    = 12
	MaxVideoResults           = 50
	DefaultServerHost         = "localhost"
	DefaultServerPort         = 8080
	DefaultRequestTimeoutSec  = 180
	DefaultMaxTokens          = 8192
	DefaultTemperature        = 0.7
	DefaultLedgerFilename     = "runs.db"
	DefaultHistoryTransitions = 100
)

// Models maps capability tiers to model names.
type Models struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning"`
	Image     string `json:"image"`
}

// VideoConfig configures the video-search adapter.
type VideoConfig struct {
	Endpoint   string `json:"endpoint"`
	MaxResults int    `json:"max_results"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LLMConfig holds per-request generation settings.
type LLMConfig struct {
	RequestTimeoutSec int     `json:"request_timeout_sec"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float32 `json:"temperature"`
}

// LedgerConfig configures the sqlite run ledger.
type LedgerConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // relative paths resolve against the config dir
}

// MetricsConfig toggles Prometheus recording.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// Config is the full application configuration.
type Config struct {
	SchemaVersion string        `json:"schema_version"`
	Models        Models        `json:"models"`
	Video         VideoConfig   `json:"video"`
	Server        ServerConfig  `json:"server"`
	LLM           LLMConfig     `json:"llm"`
	Ledger        LedgerConfig  `json:"ledger"`
	Metrics       MetricsConfig `json:"metrics"`
}

//nolint:gochecknoglobals // singleton config, copy-on-read
var (
	config     *Config
	projectDir string
	logger     *logx.Logger
	mu         sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// GetConfig returns a copy of the loaded config.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call LoadConfig first")
	}
	return *config, nil
}

// GetProjectDir returns the directory LoadConfig was called with.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// SetConfigForTesting replaces the global config. Pass nil to reset.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// LoadConfig loads <projectDir>/.omniagent/config.json into the global config.
// A missing file is created from defaults; an unparseable file is an error so
// user edits are never overwritten.
func LoadConfig(inputProjectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	projectDir = inputProjectDir
	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		getLogger().Info("Config file not found, creating %s", configPath)
		config = DefaultConfig()
		if err := validateConfig(config); err != nil {
			return fmt.Errorf("default config validation failed: %w", err)
		}
		return saveConfigLocked()
	}

	loaded, err := loadConfigFromFile(configPath)
	if err != nil {
		return fmt.Errorf("config file exists but cannot be parsed (refusing to overwrite it): %w", err)
	}
	applyDefaults(loaded)
	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config = loaded
	getLogger().Info("Config loaded from %s", configPath)
	return nil
}

func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", configPath, err)
	}
	return &cfg, nil
}

func saveConfigLocked() error {
	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Ledger:  LedgerConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.Models.Text == "" {
		cfg.Models.Text = DefaultTextModel
	}
	if cfg.Models.Reasoning == "" {
		cfg.Models.Reasoning = DefaultReasoningModel
	}
	if cfg.Models.Image == "" {
		cfg.Models.Image = DefaultImageModel
	}
	if cfg.Video.Endpoint == "" {
		cfg.Video.Endpoint = DefaultVideoEndpoint
	}
	if cfg.Video.MaxResults <= 0 {
		cfg.Video.MaxResults = DefaultVideoMaxResults
	}
	if cfg.Video.MaxResults > MaxVideoResults {
		cfg.Video.MaxResults = MaxVideoResults
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.LLM.RequestTimeoutSec <= 0 {
		cfg.LLM.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerFilename
	}
}

func validateConfig(cfg *Config) error {
	for tier, model := range map[string]string{
		"text":      cfg.Models.Text,
		"reasoning": cfg.Models.Reasoning,
		"image":     cfg.Models.Image,
	} {
		if _, err := GetModelProvider(model); err != nil {
			return fmt.Errorf("models.%s: %w", tier, err)
		}
	}
	if provider, _ := GetModelProvider(cfg.Models.Image); provider != ProviderGoogle {
		return fmt.Errorf("models.image: %s is not an image-capable model (only %s models can produce images)", cfg.Models.Image, ProviderGoogle)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0.0 and 2.0")
	}
	return nil
}

// LedgerPath resolves the ledger path against the project config dir.
func (c *Config) LedgerPath(projectDir string) string {
	if filepath.IsAbs(c.Ledger.Path) || c.Ledger.Path == ":memory:" {
		return c.Ledger.Path
	}
	return filepath.Join(projectDir, ProjectConfigDir, c.Ledger.Path)
}

// GetModelProvider returns the API provider for a model: the registry first,
// then prefix inference.
func GetModelProvider(modelName string) (string, error) {
	if info, ok := KnownModels()[modelName]; ok {
		return info.Provider, nil
	}
	if strings.HasPrefix(modelName, "ollama/") || strings.HasPrefix(modelName, "ollama:") {
		return ProviderOllama, nil
	}
	for _, p := range providerPatterns {
		if strings.HasPrefix(modelName, p.prefix) {
			return p.provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no registry entry or prefix match", modelName)
}

type providerPattern struct {
	prefix   string
	provider string
}

//nolint:gochecknoglobals // static inference rules
var providerPatterns = []providerPattern{
	{"gemini", ProviderGoogle},
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"phi", ProviderOllama},
}

// OllamaModelName strips the optional "ollama/" or "ollama:" prefix.
func OllamaModelName(model string) string {
	for _, prefix := range []string{"ollama/", "ollama:"} {
		if strings.HasPrefix(model, prefix) {
			return strings.TrimPrefix(model, prefix)
		}
	}
	return model
}

// GetAPIKey returns the credential for a provider: secrets file first, then env.
// For Ollama the host URL is returned instead.
func GetAPIKey(provider string) (string, error) {
	var names []string
	switch provider {
	case ProviderGoogle:
		names = []string{EnvGeminiAPIKey, EnvLegacyAPIKey}
	case ProviderAnthropic:
		names = []string{EnvAnthropicAPIKey}
	case ProviderOpenAI:
		names = []string{EnvOpenAIAPIKey}
	case ProviderOllama:
		if host, err := GetSecret(EnvOllamaHost); err == nil && host != "" {
			return host, nil
		}
		return "http://localhost:11434", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	for _, name := range names {
		if key, err := GetSecret(name); err == nil && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("API key not found: %s not set in secrets file or environment", strings.Join(names, "/"))
}

// GetVideoAPIKey returns the video-search key, or "" when none is configured.
func GetVideoAPIKey() string {
	key, err := GetSecret(EnvYouTubeAPIKey)
	if err != nil {
		return ""
	}
	return key
}
