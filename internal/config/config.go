// Package config provides centralized configuration for the sitebook server.
// Values come from built-in defaults, then an optional YAML file, then
// environment variables (including a local .env.local file).
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Providers lists the supported LLM backends.
var Providers = []string{"openai", "claude", "gemini", "ollama", "stub"}

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `yaml:"port"`

	// DBPath is the path to the SQLite database file.
	DBPath string `yaml:"db_path"`

	LogLevel string `yaml:"log_level"`
	// LogFile receives JSON logs. Empty logs to stderr.
	LogFile string `yaml:"log_file"`

	// LLMProvider selects which LLM backend to use: "openai", "claude", "gemini", "ollama" or "stub".
	LLMProvider string `yaml:"llm_provider"`

	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`

	// HTTPTimeout is the timeout for outgoing HTTP requests (LLM, reference documents).
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// ContextItemLimit caps the action items listed in the model context.
	ContextItemLimit int `yaml:"context_item_limit"`

	// ContextNoteLimit caps the recent notes listed per item.
	ContextNoteLimit int `yaml:"context_note_limit"`

	// ReferenceMaxChars is the maximum number of runes kept from a reference document.
	ReferenceMaxChars int `yaml:"reference_max_chars"`

	// ReferenceRefresh is how often the background worker re-fetches reference documents.
	ReferenceRefresh time.Duration `yaml:"reference_refresh"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `yaml:"cors_origin"`

	// DefaultActor labels changes when a request names no actor.
	DefaultActor string `yaml:"default_actor"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              "8080",
		DBPath:            "sitebook.db",
		LogLevel:          "info",
		LLMProvider:       "openai",
		OpenAIBaseURL:     "https://api.openai.com/v1",
		OpenAIModel:       "gpt-4o-mini",
		AnthropicModel:    "claude-sonnet-4-20250514",
		GeminiModel:       "gemini-2.0-flash",
		OllamaURL:         "http://localhost:11434",
		OllamaModel:       "llama3",
		HTTPTimeout:       60 * time.Second,
		ContextItemLimit:  50,
		ContextNoteLimit:  3,
		ReferenceMaxChars: 15000,
		ReferenceRefresh:  15 * time.Minute,
		CORSOrigin:        "*",
	}
}

// Load builds the configuration. path names an optional YAML file; a
// missing file at an explicit path is an error. The environment always
// wins over the file.
func Load(path string) (Config, error) {
	loadEnvFile(".env.local")

	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFile = envOr("LOG_FILE", c.LogFile)
	c.LLMProvider = envOr("LLM_PROVIDER", c.LLMProvider)
	c.OpenAIKey = envOr("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.AnthropicKey = envOr("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.GeminiKey = envOr("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envOr("OLLAMA_MODEL", c.OllamaModel)
	c.HTTPTimeout = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.ContextItemLimit = envInt("CONTEXT_ITEM_LIMIT", c.ContextItemLimit)
	c.ContextNoteLimit = envInt("CONTEXT_NOTE_LIMIT", c.ContextNoteLimit)
	c.ReferenceMaxChars = envInt("REFERENCE_MAX_CHARS", c.ReferenceMaxChars)
	c.ReferenceRefresh = envDuration("REFERENCE_REFRESH", c.ReferenceRefresh)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.DefaultActor = envOr("DEFAULT_ACTOR", c.DefaultActor)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("port", c.Port, validPort),
		criterio.Run("db_path", c.DBPath, required),
		criterio.Run("llm_provider", c.LLMProvider, oneOf(Providers)),
		criterio.Run("log_level", c.LogLevel, oneOf([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"})),
		criterio.Run("http_timeout", c.HTTPTimeout, positive[time.Duration]),
		criterio.Run("context_item_limit", c.ContextItemLimit, positive[int]),
		criterio.Run("context_note_limit", c.ContextNoteLimit, nonNegative),
		criterio.Run("reference_max_chars", c.ReferenceMaxChars, positive[int]),
		criterio.Run("reference_refresh", c.ReferenceRefresh, positive[time.Duration]),
	)
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "stub":
		return true
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("is required")
	}
	return nil
}

func validPort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%q is not a valid port", s)
	}
	return nil
}

func oneOf(allowed []string) func(string) error {
	return func(s string) error {
		if !slices.Contains(allowed, s) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

func positive[T int | time.Duration](v T) error {
	if v <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func nonNegative(v int) error {
	if v < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

// loadEnvFile sets KEY=VALUE pairs from path as environment variables,
// without overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
