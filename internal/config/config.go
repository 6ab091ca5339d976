package config

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const fileName = "draughtsman.yml"

// Config models draughtsman.yml.
type Config struct {
	Site struct {
		Name string `yaml:"name"`
	} `yaml:"site"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Notifications struct {
		OperatorAddress string `yaml:"operator_address"`
	} `yaml:"notifications"`
	Mail     MailConfig `yaml:"mail"`
	Auth     AuthConfig `yaml:"auth"`
	AI       AIConfig   `yaml:"ai"`
	Timeouts struct {
		Persist Duration `yaml:"persist"`
		Notify  Duration `yaml:"notify"`
	} `yaml:"timeouts"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// Configured reports whether every transport setting is present.
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.Port > 0 && m.Username != "" && m.Password != "" && m.From != ""
}

type AuthConfig struct {
	JWTSecret            string   `yaml:"jwt_secret"`
	TokenTTL             Duration `yaml:"token_ttl"`
	RequireForScheduling *bool    `yaml:"require_for_scheduling"`
}

// SchedulingRequiresAuth defaults to true when unset.
func (a AuthConfig) SchedulingRequiresAuth() bool {
	return a.RequireForScheduling == nil || *a.RequireForScheduling
}

type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// WebhookConfig is one outbound event subscription.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Duration accepts Go duration strings such as "30s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("config.mail.port %d out of range", c.Mail.Port)
	}
	if c.Mail.From != "" {
		if _, err := mail.ParseAddress(c.Mail.From); err != nil {
			return fmt.Errorf("config.mail.from: %w", err)
		}
	}
	if addr := c.Notifications.OperatorAddress; addr != "" {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("config.notifications.operator_address: %w", err)
		}
	}
	if c.Timeouts.Persist < 0 || c.Timeouts.Notify < 0 || c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config timeouts must not be negative")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Dropbox Draughtsman"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/v0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Dropbox Draughtsman"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = Duration(24 * time.Hour)
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.Timeouts.Persist == 0 {
		c.Timeouts.Persist = Duration(10 * time.Second)
	}
	if c.Timeouts.Notify == 0 {
		c.Timeouts.Notify = Duration(30 * time.Second)
	}
}

// envBindings maps config keys to the environment variables that may set
// them. The DRAUGHTSMAN_ names come from the viper prefix; the others are the
// variable names the hosted site used.
var envBindings = map[string][]string{
	"server.addr":                    {"DRAUGHTSMAN_SERVER_ADDR"},
	"server.base_path":               {"DRAUGHTSMAN_SERVER_BASE_PATH"},
	"log.level":                      {"DRAUGHTSMAN_LOG_LEVEL"},
	"notifications.operator_address": {"DRAUGHTSMAN_NOTIFICATIONS_OPERATOR_ADDRESS", "ADMIN_EMAIL"},
	"mail.host":                      {"DRAUGHTSMAN_MAIL_HOST", "EMAIL_SERVER_HOST"},
	"mail.port":                      {"DRAUGHTSMAN_MAIL_PORT", "EMAIL_SERVER_PORT"},
	"mail.username":                  {"DRAUGHTSMAN_MAIL_USERNAME", "EMAIL_SERVER_USER"},
	"mail.password":                  {"DRAUGHTSMAN_MAIL_PASSWORD", "EMAIL_SERVER_PASSWORD"},
	"mail.from":                      {"DRAUGHTSMAN_MAIL_FROM", "EMAIL_FROM"},
	"mail.from_name":                 {"DRAUGHTSMAN_MAIL_FROM_NAME", "EMAIL_FROM_NAME"},
	"auth.jwt_secret":                {"DRAUGHTSMAN_AUTH_JWT_SECRET"},
	"ai.api_key":                     {"DRAUGHTSMAN_AI_API_KEY", "GEMINI_API_KEY"},
	"ai.model":                       {"DRAUGHTSMAN_AI_MODEL"},
}

// BindEnv registers the environment names of every overlayable key on v.
func BindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Overlay copies every key set in v (environment or flags) onto cfg and
// re-validates it.
func Overlay(cfg *Config, v *viper.Viper) error {
	if v == nil {
		return cfg.Validate()
	}
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	str("server.addr", &cfg.Server.Addr)
	str("server.base_path", &cfg.Server.BasePath)
	str("log.level", &cfg.Log.Level)
	str("notifications.operator_address", &cfg.Notifications.OperatorAddress)
	str("mail.host", &cfg.Mail.Host)
	str("mail.username", &cfg.Mail.Username)
	str("mail.password", &cfg.Mail.Password)
	str("mail.from", &cfg.Mail.From)
	str("mail.from_name", &cfg.Mail.FromName)
	str("auth.jwt_secret", &cfg.Auth.JWTSecret)
	str("ai.api_key", &cfg.AI.APIKey)
	str("ai.model", &cfg.AI.Model)
	if v.IsSet("mail.port") {
		cfg.Mail.Port = v.GetInt("mail.port")
	}
	cfg.applyDefaults()
	return cfg.Validate()
}

const defaultTemplate = `site:
  name: Dropbox Draughtsman

server:
  addr: 127.0.0.1:8080
  base_path: /v0

log:
  level: info
  json: false

# Operator inbox for guidance and scheduling notifications (ADMIN_EMAIL).
notifications:
  operator_address: ""

# Leave host empty to run without e-mail; submissions still succeed.
mail:
  host: ""
  port: 587
  username: ""
  password: ""
  from: ""
  from_name: Dropbox Draughtsman

auth:
  jwt_secret: ""
  token_ttl: 24h
  require_for_scheduling: true

ai:
  api_key: ""
  model: gemini-2.0-flash

timeouts:
  persist: 10s
  notify: 30s

webhooks: []
`
