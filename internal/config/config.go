package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/hongslab/aga-care/backend/internal/integrations/gemini"
)

// Status is the application-level readiness computed once at startup.
// When the AI credentials are absent or still the shipped placeholder,
// the chat surface is blocked with a remediation message instead of
// running half-configured.
type Status string

const (
	StatusReady        Status = "ready"
	StatusUnconfigured Status = "unconfigured"
)

// apiKeyPlaceholder is the value left in sample configs; it counts as
// "not configured" rather than a usable credential.
const apiKeyPlaceholder = "YOUR_API_KEY"

// Config aggregates the service configuration.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai := loadAIConfig()
	store := loadStoreConfig()

	return &Config{Server: server, AI: ai, Store: store}, nil
}

// Status reports whether the chat surface may be entered.
func (c *Config) Status() Status {
	if c.AI.Enabled() {
		return StatusReady
	}
	return StatusUnconfigured
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig holds the generative endpoint credentials and model name.
// Generation parameters (temperature, output budget) are fixed by the
// product and deliberately have no knobs here.
type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Enabled reports whether a usable API key was provided.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.APIKey != apiKeyPlaceholder
}

// NewChatModel builds the Gemini-backed chat model from this config.
func (c AIConfig) NewChatModel() (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY is missing or still %q; set a real key to enable the assistant", apiKeyPlaceholder)
	}

	return gemini.NewChatModel(gemini.Config{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
	})
}

func loadAIConfig() AIConfig {
	return AIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		BaseURL: getEnvOrDefault("GEMINI_BASE_URL", ""),
	}
}

// StoreConfig selects the family document store backend. When no table
// is named, the in-memory store is used.
type StoreConfig struct {
	TableName string
}

// Persistent reports whether the DynamoDB-backed store should be used.
func (c StoreConfig) Persistent() bool {
	return c.TableName != ""
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		TableName: strings.TrimSpace(os.Getenv("FAMILY_TABLE")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
