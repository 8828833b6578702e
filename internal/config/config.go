// Package config loads VeloxCase settings from the config file, the
// environment and a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/veloxcase/cli/internal/ai"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
)

const (
	ConfigDirName  = ".veloxcase"
	ConfigFileName = "config.yaml"
	EnvPrefix      = "VELOXCASE"

	DefaultTimeoutSecs = 30
	DefaultMaxTasks    = 3
	DefaultServerAddr  = ":8080"
)

// JiraConfig is the tracker connection
type JiraConfig struct {
	BaseURL  string `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	Email    string `mapstructure:"email" json:"email" validate:"omitempty,email"`
	APIToken string `mapstructure:"api_token" json:"-"`
}

// TestmoConfig is the test-management connection
type TestmoConfig struct {
	BaseURL string `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key" json:"-"`
}

// AIConfig holds the analysis settings
type AIConfig struct {
	Enabled      bool    `mapstructure:"enabled" json:"enabled"`
	APIKey       string  `mapstructure:"api_key" json:"-"`
	Model        string  `mapstructure:"model" json:"model" validate:"required"`
	SystemPrompt string  `mapstructure:"system_prompt" json:"system_prompt,omitempty"`
	Vision       bool    `mapstructure:"vision" json:"vision"`
	Automation   bool    `mapstructure:"automation" json:"automation"`
	Negative     bool    `mapstructure:"negative" json:"negative"`
	MockData     bool    `mapstructure:"mock_data" json:"mock_data"`
	Temperature  float64 `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=2"`
}

// LogConfig selects the log handler
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" validate:"oneof=text json"`
}

// ServerConfig is the HTTP API listener
type ServerConfig struct {
	Addr  string `mapstructure:"addr" json:"addr" validate:"required"`
	Token string `mapstructure:"token" json:"-"`
}

// Config is the full application configuration
type Config struct {
	Jira           JiraConfig   `mapstructure:"jira" json:"jira"`
	Testmo         TestmoConfig `mapstructure:"testmo" json:"testmo"`
	AI             AIConfig     `mapstructure:"ai" json:"ai"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds" json:"timeout_seconds" validate:"gt=0,lte=600"`
	DBPath         string       `mapstructure:"db_path" json:"db_path" validate:"required"`
	Log            LogConfig    `mapstructure:"log" json:"log"`
	Server         ServerConfig `mapstructure:"server" json:"server"`
	MaxTasks       int          `mapstructure:"max_tasks" json:"max_tasks" validate:"gte=1,lte=50"`

	// File is the config file that was read, if any
	File string `mapstructure:"-" json:"-"`
}

var validate = validator.New()

// defaults lists every known key. Keys without a default are still listed
// so environment variables bind to them.
func defaults() map[string]any {
	return map[string]any{
		"jira.base_url":    "",
		"jira.email":       "",
		"jira.api_token":   "",
		"testmo.base_url":  "",
		"testmo.api_key":   "",
		"ai.enabled":       false,
		"ai.api_key":       "",
		"ai.model":         ai.DefaultModel,
		"ai.system_prompt": "",
		"ai.vision":        false,
		"ai.automation":    false,
		"ai.negative":      false,
		"ai.mock_data":     false,
		"ai.temperature":   ai.DefaultTemperature,
		"timeout_seconds":  DefaultTimeoutSecs,
		"db_path":          filepath.Join(ConfigDir(), "history.db"),
		"log.level":        "info",
		"log.format":       "text",
		"server.addr":      DefaultServerAddr,
		"server.token":     "",
		"max_tasks":        DefaultMaxTasks,
	}
}

// secretKeys are masked by Display
var secretKeys = map[string]bool{
	"jira.api_token": true,
	"testmo.api_key": true,
	"ai.api_key":     true,
	"server.token":   true,
}

// Keys returns every settable key in sorted order
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigDir returns ~/.veloxcase
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigDirName
	}
	return filepath.Join(home, ConfigDirName)
}

// ConfigPath returns the default config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	return v
}

// Load reads configuration with priority env > config file > defaults.
// An empty path means the default config file; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = ConfigPath()
	}
	v := newViper()
	v.SetConfigFile(path)

	file := path
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		file = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Jira.BaseURL = client.NormalizeBaseURL(c.Jira.BaseURL)
	c.Testmo.BaseURL = client.NormalizeBaseURL(c.Testmo.BaseURL)
	c.Jira.Email = strings.TrimSpace(c.Jira.Email)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if strings.HasPrefix(c.DBPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.DBPath = filepath.Join(home, c.DBPath[2:])
		}
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: invalid configuration: %v", client.ErrValidation, err)
	}
	return nil
}

// Timeout is the per-request timeout for remote calls
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Features returns the AI feature flags
func (c *Config) Features() schema.FeatureFlags {
	return schema.FeatureFlags{
		Vision:     c.AI.Vision,
		Automation: c.AI.Automation,
		Negative:   c.AI.Negative,
		MockData:   c.AI.MockData,
	}
}

// Analysis returns the per-call AI settings
func (c *Config) Analysis() schema.AnalysisSettings {
	return schema.AnalysisSettings{
		Enabled:            c.AI.Enabled && c.AI.APIKey != "",
		Features:           c.Features(),
		CustomInstructions: c.AI.SystemPrompt,
	}
}

// JiraConfigured reports whether all Jira credentials are present
func (c *Config) JiraConfigured() bool {
	return c.Jira.BaseURL != "" && c.Jira.Email != "" && c.Jira.APIToken != ""
}

// TestmoConfigured reports whether all Testmo credentials are present
func (c *Config) TestmoConfigured() bool {
	return c.Testmo.BaseURL != "" && c.Testmo.APIKey != ""
}

// RequireJira returns a validation error naming the missing Jira settings
func (c *Config) RequireJira() error {
	return missing(map[string]string{
		"jira.base_url":  c.Jira.BaseURL,
		"jira.email":     c.Jira.Email,
		"jira.api_token": c.Jira.APIToken,
	})
}

// RequireTestmo returns a validation error naming the missing Testmo settings
func (c *Config) RequireTestmo() error {
	return missing(map[string]string{
		"testmo.base_url": c.Testmo.BaseURL,
		"testmo.api_key":  c.Testmo.APIKey,
	})
}

func missing(values map[string]string) error {
	var keys []string
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return client.Validationf("missing configuration: %s (run: veloxcase config set KEY VALUE)", strings.Join(keys, ", "))
}

// Display returns every key with its effective value, secrets masked
func (c *Config) Display() map[string]string {
	values := map[string]string{
		"jira.base_url":    c.Jira.BaseURL,
		"jira.email":       c.Jira.Email,
		"jira.api_token":   c.Jira.APIToken,
		"testmo.base_url":  c.Testmo.BaseURL,
		"testmo.api_key":   c.Testmo.APIKey,
		"ai.enabled":       strconv.FormatBool(c.AI.Enabled),
		"ai.api_key":       c.AI.APIKey,
		"ai.model":         c.AI.Model,
		"ai.system_prompt": c.AI.SystemPrompt,
		"ai.vision":        strconv.FormatBool(c.AI.Vision),
		"ai.automation":    strconv.FormatBool(c.AI.Automation),
		"ai.negative":      strconv.FormatBool(c.AI.Negative),
		"ai.mock_data":     strconv.FormatBool(c.AI.MockData),
		"ai.temperature":   strconv.FormatFloat(c.AI.Temperature, 'f', -1, 64),
		"timeout_seconds":  strconv.Itoa(c.TimeoutSeconds),
		"db_path":          c.DBPath,
		"log.level":        c.Log.Level,
		"log.format":       c.Log.Format,
		"server.addr":      c.Server.Addr,
		"server.token":     c.Server.Token,
		"max_tasks":        strconv.Itoa(c.MaxTasks),
	}
	for k := range secretKeys {
		if values[k] != "" {
			values[k] = MaskAPIKey(values[k])
		}
	}
	return values
}

// Set writes one key to the config file at path (the default file when
// empty). The value is parsed according to the key's type.
func Set(path, key, raw string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	def, ok := defaults()[key]
	if !ok {
		return client.Validationf("unknown config key %q", key)
	}
	value, err := parseValue(def, raw)
	if err != nil {
		return client.Validationf("%s: %v", key, err)
	}

	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// A file-only viper so defaults and env values are not written out
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	v.Set(key, value)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

func parseValue(def any, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch def.(type) {
	case bool:
		return strconv.ParseBool(raw)
	case int:
		return strconv.Atoi(raw)
	case float64:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

// IsSecret reports whether a key holds a credential
func IsSecret(key string) bool {
	return secretKeys[key]
}

// MaskAPIKey returns a masked version of the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return "***..." + key[len(key)-4:]
}
