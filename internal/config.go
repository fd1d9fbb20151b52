package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dosewise/internal/assistant"
	"github.com/starford/dosewise/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig `yaml:"app"`
	Store        StoreConfig       `yaml:"store"`
	Reminders    RemindersConfig   `yaml:"reminders"`
	Interactions InteractionConfig `yaml:"interactions"`
	Assistant    AssistantConfig   `yaml:"assistant"`
	Scan         ScanConfig        `yaml:"scan"`
	Notify       NotifyConfig      `yaml:"notify"`
	Auth         AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Store, &c.Reminders, &c.Assistant, &c.Scan, &c.Notify, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// Timezone is the IANA zone that decides which calendar day a dose
	// belongs to. Empty means the host's local zone.
	Timezone string `yaml:"timezone"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("app: timezone: %w", err)
	}
	return c.HTTP.Validate()
}

// Location resolves Timezone.
func (c *ApplicationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend   string      `yaml:"backend"`
	Path      string      `yaml:"path"`
	DSN       string      `yaml:"dsn"`
	Redis     RedisConfig `yaml:"redis"`
	KeyPrefix string      `yaml:"key_prefix"`
	// Watch reloads state when another process rewrites the data files.
	// Only the file backend supports it.
	Watch bool `yaml:"watch"`
}

// RedisConfig holds the redis backend connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	backends := []interface{}{
		storage.BackendFile, storage.BackendSQLite, storage.BackendPostgres,
		storage.BackendRedis, storage.BackendMemory,
	}
	needsPath := c.Backend == storage.BackendFile || c.Backend == storage.BackendSQLite
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(backends...)),
		validation.Field(&c.Path, validation.When(needsPath, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Backend == storage.BackendPostgres, validation.Required)),
		validation.Field(&c.Redis, validation.When(c.Backend == storage.BackendRedis, validation.By(func(any) error {
			return validation.Validate(c.Redis.Addr, validation.Required)
		}))),
		validation.Field(&c.Watch, validation.When(c.Backend != storage.BackendFile,
			validation.In(false).Error("is only supported by the file backend"))),
	)
}

// Options converts the config to storage options.
func (c *StoreConfig) Options() storage.Options {
	return storage.Options{
		Backend: c.Backend,
		Path:    c.Path,
		DSN:     c.DSN,
		Redis: storage.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		},
	}
}

// RemindersConfig tunes the reminder scheduler.
type RemindersConfig struct {
	SnoozeDelay time.Duration `yaml:"snooze_delay"`
	// RoundRobinInterval cycles a nudge through the medication list while
	// the process runs. Zero disables it.
	RoundRobinInterval time.Duration `yaml:"round_robin_interval"`
}

// Validate validates the reminders configuration.
func (c *RemindersConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SnoozeDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.RoundRobinInterval, validation.Min(time.Duration(0))),
	)
}

// InteractionConfig points at an optional rules table replacing the
// built-in one.
type InteractionConfig struct {
	RulesFile string `yaml:"rules_file"`
}

// AssistantConfig selects the chat assistant backend.
type AssistantConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	remote := c.Provider == assistant.ProviderOpenAI || c.Provider == assistant.ProviderGemini
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(assistant.ProviderStatic, assistant.ProviderOpenAI, assistant.ProviderGemini)),
		validation.Field(&c.APIKey, validation.When(remote, validation.Required)),
	)
}

// Options converts the config to assistant options.
func (c *AssistantConfig) Options() assistant.Config {
	return assistant.Config{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

// ScanConfig points at the image classifier model server. Scanning is off
// when Endpoint is empty.
type ScanConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// NotifyConfig holds optional notification sinks.
type NotifyConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`
}

// Validate validates the notify configuration.
func (c *NotifyConfig) Validate() error {
	return c.MQTT.Validate()
}

// MQTTConfig publishes reminders to an MQTT broker when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled reports whether a broker is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Validate validates the MQTT configuration.
func (c *MQTTConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ClientID, validation.When(c.Enabled(), validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend:   storage.BackendFile,
			Path:      "./data",
			KeyPrefix: "app",
			Watch:     true,
		},
		Reminders: RemindersConfig{
			SnoozeDelay:        15 * time.Minute,
			RoundRobinInterval: 45 * time.Second,
		},
		Assistant: AssistantConfig{
			Provider: assistant.ProviderStatic,
			Timeout:  30 * time.Second,
		},
		Scan: ScanConfig{
			Timeout:  10 * time.Second,
			Interval: 200 * time.Millisecond,
		},
		Notify: NotifyConfig{
			MQTT: MQTTConfig{
				ClientID:    "dosewise",
				TopicPrefix: "dosewise",
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
