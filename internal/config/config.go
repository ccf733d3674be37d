package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Storage      StorageConfig      `koanf:"storage"`
	LLM          LLMConfig          `koanf:"llm"`
	Telephony    TelephonyConfig    `koanf:"telephony"`
	SMTP         SMTPConfig         `koanf:"smtp"`
	Conversation ConversationConfig `koanf:"conversation"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type LLMConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"` // Custom API endpoint
	Timeout time.Duration `koanf:"timeout"`
}

type TelephonyConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	From       string `koanf:"from"`
	PublicURL  string `koanf:"public_url"` // Externally reachable base URL for webhooks
	Voice      string `koanf:"voice"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type ConversationConfig struct {
	MaxTurns            int           `koanf:"max_turns"`
	SessionTimeout      time.Duration `koanf:"session_timeout"`
	ConfidenceThreshold float64       `koanf:"confidence_threshold"`
	AffirmativeWords    []string      `koanf:"affirmative_words"`
	NegativeWords       []string      `koanf:"negative_words"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("CALLAGENT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CALLAGENT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":                       8080,
		"storage.sqlite.path":               "callagent.db",
		"llm.model":                         "gpt-4o-mini",
		"llm.timeout":                       "10s",
		"telephony.voice":                   "Polly.Joanna",
		"conversation.max_turns":            10,
		"conversation.session_timeout":      "90s",
		"conversation.confidence_threshold": 0.5,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)
	cfg.Telephony.AccountSID = substituteEnvVars(cfg.Telephony.AccountSID)
	cfg.Telephony.AuthToken = substituteEnvVars(cfg.Telephony.AuthToken)
	cfg.SMTP.Password = substituteEnvVars(cfg.SMTP.Password)

	return &cfg, nil
}

// Validate reports the misconfigurations that would only surface mid-call.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Telephony.AccountSID != "" && c.Telephony.PublicURL == "" {
		return fmt.Errorf("telephony.public_url is required when telephony is configured")
	}
	if c.Conversation.ConfidenceThreshold < 0 || c.Conversation.ConfidenceThreshold > 1 {
		return fmt.Errorf("conversation.confidence_threshold %f out of range", c.Conversation.ConfidenceThreshold)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
