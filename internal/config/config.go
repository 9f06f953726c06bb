package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates the service configuration.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Session SessionConfig
	Debug   bool `env:"DEBUG" envDefault:"false"`
}

// ServerConfig describes the HTTP surface.
type ServerConfig struct {
	Port           string `env:"PORT" envDefault:"8080"`
	Addr           string
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
	AllowedOrigin  string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	PlotsDir       string `env:"PLOTS_DIR" envDefault:"plots"`
}

// AIConfig describes the chat model and how queries use it.
type AIConfig struct {
	APIKey             string        `env:"ARK_API_KEY"`
	AccessKey          string        `env:"ARK_ACCESS_KEY"`
	SecretKey          string        `env:"ARK_SECRET_KEY"`
	Model              string        `env:"Model"`
	BaseURL            string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region             string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature        float64       `env:"ARK_TEMPERATURE" envDefault:"0.2"`
	TopP               *float64      `env:"ARK_TOP_P"`
	MaxTokens          *int          `env:"ARK_MAX_TOKENS"`
	Timeout            time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	PromptTemplateFile string        `env:"PROMPT_TEMPLATE_FILE"`
}

// SessionConfig bounds the session cache and conversation size.
type SessionConfig struct {
	Capacity        int           `env:"SESSION_CAPACITY" envDefault:"256"`
	TTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	HistoryMaxWords int           `env:"HISTORY_MAX_WORDS" envDefault:"2000"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	trim(&cfg.AI.APIKey, &cfg.AI.AccessKey, &cfg.AI.SecretKey, &cfg.AI.Model,
		&cfg.AI.BaseURL, &cfg.AI.Region, &cfg.AI.PromptTemplateFile,
		&cfg.Server.AllowedOrigin, &cfg.Server.PlotsDir)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Server.MaxUploadBytes <= 0:
		return fmt.Errorf("invalid MAX_UPLOAD_BYTES value %d: must be positive", c.Server.MaxUploadBytes)
	case c.Server.PlotsDir == "":
		return fmt.Errorf("PLOTS_DIR must not be empty")
	case c.AI.Timeout <= 0:
		return fmt.Errorf("invalid COMPLETION_TIMEOUT value %s: must be positive", c.AI.Timeout)
	case c.Session.Capacity < 0:
		return fmt.Errorf("invalid SESSION_CAPACITY value %d: must not be negative", c.Session.Capacity)
	case c.Session.TTL < 0:
		return fmt.Errorf("invalid SESSION_TTL value %s: must not be negative", c.Session.TTL)
	case c.Session.HistoryMaxWords < 0:
		return fmt.Errorf("invalid HISTORY_MAX_WORDS value %d: must not be negative", c.Session.HistoryMaxWords)
	}
	return nil
}

// listenAddr turns PORT into a listen address.
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// ":8080" or "127.0.0.1:8080" are used as given.
		return port, nil
	}

	return ":" + port, nil
}

// Enabled reports whether a model and credentials were supplied.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// Temperature32 returns the sampling temperature in the model's precision.
func (c AIConfig) Temperature32() *float32 {
	val := float32(c.Temperature)
	return &val
}

// PromptTemplate returns the instruction template override, or "" for the
// built-in template.
func (c AIConfig) PromptTemplate() (string, error) {
	if c.PromptTemplateFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PromptTemplateFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PROMPT_TEMPLATE_FILE: %w", err)
	}
	return string(data), nil
}

// NewChatModel creates the Ark chat model described by the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark credentials or model missing: set Model with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature32(),
		TopP:        topP,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ark chat model: %w", err)
	}
	return chatModel, nil
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
