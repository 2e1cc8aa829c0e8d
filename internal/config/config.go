package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Notion  NotionConfig  `yaml:"notion"`
	Webhook WebhookConfig `yaml:"webhook"`
	Google  GoogleConfig  `yaml:"google"`
	Access  AccessConfig  `yaml:"access"`
}

// ServerConfig holds HTTP and session settings.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	DBPath          string        `yaml:"db_path"`
	TemplatesDir    string        `yaml:"templates_dir"`
	StaticDir       string        `yaml:"static_dir"`
	SecureCookie    bool          `yaml:"secure_cookie"`
	SessionSecret   string        `yaml:"session_secret"`
	SessionDuration time.Duration `yaml:"session_duration"`
	LogFormat       string        `yaml:"log_format"`
	LogLevel        string        `yaml:"log_level"`
}

// NotionConfig holds the Notion API settings.
type NotionConfig struct {
	APIKey               string        `yaml:"api_key"`
	BaseURL              string        `yaml:"base_url"`
	Version              string        `yaml:"version"`
	ConsultingDatabaseID string        `yaml:"consulting_database_id"`
	ExpenseDatabaseID    string        `yaml:"expense_database_id"`
	Timeout              time.Duration `yaml:"timeout"`
}

// WebhookConfig holds the notification webhook settings. An empty URL
// disables notifications.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// GoogleConfig holds the OAuth client. The endpoint URLs are only set to
// point at a stand-in provider.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
}

// AccessConfig lists who may use the application.
type AccessConfig struct {
	AllowedDomains []string `yaml:"allowed_domains"`
	AllowedEmails  []string `yaml:"allowed_emails"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			DBPath:          "invoice-desk.db",
			TemplatesDir:    "web/templates",
			StaticDir:       "web/static",
			SessionDuration: 30 * 24 * time.Hour,
			LogFormat:       "json",
			LogLevel:        "info",
		},
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com/v1",
			Version: "2022-06-28",
			Timeout: 10 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and then environment variables, in that order.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.DBPath = getEnv("DB_PATH", c.Server.DBPath)
	c.Server.TemplatesDir = getEnv("TEMPLATES_DIR", c.Server.TemplatesDir)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Server.SecureCookie = getEnvAsBool("SECURE_COOKIE", c.Server.SecureCookie)
	c.Server.SessionSecret = getEnv("SESSION_SECRET", c.Server.SessionSecret)
	c.Server.SessionDuration = getEnvAsDuration("SESSION_DURATION", c.Server.SessionDuration)
	c.Server.LogFormat = getEnv("LOG_FORMAT", c.Server.LogFormat)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)

	c.Notion.APIKey = getEnv("NOTION_API_KEY", c.Notion.APIKey)
	c.Notion.BaseURL = getEnv("NOTION_BASE_URL", c.Notion.BaseURL)
	c.Notion.Version = getEnv("NOTION_VERSION", c.Notion.Version)
	c.Notion.ConsultingDatabaseID = getEnv("NOTION_CONSULTING_DB_ID", c.Notion.ConsultingDatabaseID)
	c.Notion.ExpenseDatabaseID = getEnv("NOTION_EXPENSE_DB_ID", c.Notion.ExpenseDatabaseID)
	c.Notion.Timeout = getEnvAsDuration("NOTION_TIMEOUT", c.Notion.Timeout)

	c.Webhook.URL = getEnv("WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Timeout = getEnvAsDuration("WEBHOOK_TIMEOUT", c.Webhook.Timeout)

	c.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", c.Google.ClientID)
	c.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
	c.Google.RedirectURL = getEnv("GOOGLE_REDIRECT_URL", c.Google.RedirectURL)
	c.Google.AuthURL = getEnv("GOOGLE_AUTH_URL", c.Google.AuthURL)
	c.Google.TokenURL = getEnv("GOOGLE_TOKEN_URL", c.Google.TokenURL)
	c.Google.UserInfoURL = getEnv("GOOGLE_USERINFO_URL", c.Google.UserInfoURL)

	c.Access.AllowedDomains = getEnvAsList("ALLOWED_DOMAINS", c.Access.AllowedDomains)
	c.Access.AllowedEmails = getEnvAsList("ALLOWED_EMAILS", c.Access.AllowedEmails)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

// Validate reports every missing or unusable value the server needs.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key, value string
	}{
		{"NOTION_API_KEY", c.Notion.APIKey},
		{"NOTION_CONSULTING_DB_ID", c.Notion.ConsultingDatabaseID},
		{"NOTION_EXPENSE_DB_ID", c.Notion.ExpenseDatabaseID},
		{"GOOGLE_CLIENT_ID", c.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", c.Google.ClientSecret},
		{"GOOGLE_REDIRECT_URL", c.Google.RedirectURL},
		{"SESSION_SECRET", c.Server.SessionSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if c.Server.SessionSecret != "" && len(c.Server.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.Server.SessionDuration <= 0 {
		errs = append(errs, errors.New("SESSION_DURATION must be positive"))
	}
	if c.Notion.Timeout <= 0 {
		errs = append(errs, errors.New("NOTION_TIMEOUT must be positive"))
	}
	if c.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
