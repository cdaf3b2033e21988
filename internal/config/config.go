package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	log "github.com/tuannvm/devhub/internal/logging"
)

// Config holds the application configuration. It is built once by Load and
// passed by value or pointer into every component constructor.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Atlassian AtlassianConfig `mapstructure:"atlassian"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Serper    SerperConfig    `mapstructure:"serper"`
	Teams     TeamsConfig     `mapstructure:"teams"`
	Ticket    TicketConfig    `mapstructure:"ticket"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the A2A and ops listeners.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// AgentConfig describes the agent card.
type AgentConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	URL     string `mapstructure:"url"`
}

// AtlassianConfig is shared by the Jira and Confluence clients.
type AtlassianConfig struct {
	Domain       string `mapstructure:"domain"`
	Email        string `mapstructure:"email"`
	APIToken     string `mapstructure:"api_token"`
	ProjectKey   string `mapstructure:"project_key"`
	SpaceKey     string `mapstructure:"space_key"`
	SpaceID      string `mapstructure:"space_id"`
	ParentPageID string `mapstructure:"parent_page_id"`
	// BaseURL overrides https://{domain}.atlassian.net when set.
	BaseURL string `mapstructure:"base_url"`
}

// SiteURL returns the Atlassian site root without a trailing slash.
func (c AtlassianConfig) SiteURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.atlassian.net", c.Domain)
}

// GitHubConfig configures the source host client.
type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	BaseURL string `mapstructure:"base_url"`
}

// LLMConfig configures the text generation client.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "gemini", "openai", "azure"
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	ServiceURL  string  `mapstructure:"service_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // in seconds
	Temperature float64 `mapstructure:"temperature"`
}

// TimeoutDuration returns the per-call timeout.
func (c LLMConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// SerperConfig configures the web search client.
type SerperConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// TeamsConfig configures the chat search client.
type TeamsConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// TicketConfig configures ticket generation.
type TicketConfig struct {
	Language     string `mapstructure:"language"` // "auto", "en", "ja"
	EnableSearch bool   `mapstructure:"enable_search"`
	SearchLimit  int    `mapstructure:"search_limit"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]interface{}{
	"server.host":              "localhost",
	"server.port":              8080,
	"server.metrics_port":      9090,
	"agent.name":               "DevHubAgent",
	"agent.version":            "1.0.0",
	"agent.url":                "http://localhost:8080",
	"atlassian.domain":         "",
	"atlassian.email":          "",
	"atlassian.api_token":      "",
	"atlassian.project_key":    "",
	"atlassian.space_key":      "",
	"atlassian.space_id":       "",
	"atlassian.parent_page_id": "",
	"atlassian.base_url":       "",
	"github.token":             "",
	"github.owner":             "",
	"github.repo":              "",
	"github.base_url":          "",
	"llm.provider":             "gemini",
	"llm.model":                "gemini-2.5-flash",
	"llm.api_key":              "",
	"llm.service_url":          "",
	"llm.max_tokens":           4000,
	"llm.timeout":              30,
	"llm.temperature":          0.7,
	"serper.api_key":           "",
	"serper.base_url":          "",
	"teams.tenant_id":          "",
	"teams.client_id":          "",
	"teams.client_secret":      "",
	"ticket.language":          "auto",
	"ticket.enable_search":     true,
	"ticket.search_limit":      5,
	"log.level":                "info",
}

// Load builds the configuration from defaults, an optional config file and
// environment variables (ATLASSIAN_API_TOKEN maps to atlassian.api_token).
// A .env file is loaded first when one can be found.
func Load(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv tries the project root first, then up to two parent directories.
func loadDotEnv() {
	for _, candidate := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(candidate); err == nil {
			log.Debugf("Loaded configuration from %s file", candidate)
			return
		}
	}
	log.Debugf("No .env file found, using environment variables or defaults")
}
