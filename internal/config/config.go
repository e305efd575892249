package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgnsrekt/murfstream-go/internal/murf"
)

// ErrMissingAPIKey is returned when MURF_API_KEY is not set.
var ErrMissingAPIKey = errors.New("MURF_API_KEY is required")

// Config holds all application configuration.
type Config struct {
	// Murf connection settings
	MurfAPIKey string
	MurfWSURL  string

	// Voice settings
	VoiceID           string
	Style             string
	Rate              int
	Pitch             int
	Variation         int
	MultiNativeLocale string
	Model             string
	SampleRate        int
	ChannelType       string
	Format            string
	// PronunciationJSON is a JSON object mapping word -> attribute -> value.
	PronunciationJSON string

	// HTTP settings
	HTTPPort    int
	BearerToken string

	// Behavior settings
	MaxTextLength      int
	QueueCapacity      int
	DefaultTTL         time.Duration
	AutoDisconnectIdle time.Duration

	// Output settings
	OutputDir string

	// Discord settings (optional sink)
	DiscordToken   string
	GuildID        string
	VoiceChannelID string

	// Telemetry settings
	MetricsEnabled bool

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	defaults := murf.DefaultSettings()

	cfg := &Config{
		// Murf connection settings (API key required)
		MurfAPIKey: os.Getenv("MURF_API_KEY"),
		MurfWSURL:  getEnvString("MURF_WS_URL", murf.DefaultWSURL),

		// Voice settings
		VoiceID:           getEnvString("MURF_VOICE_ID", defaults.VoiceID),
		Style:             getEnvString("MURF_STYLE", defaults.Style),
		Rate:              getEnvInt("MURF_RATE", defaults.Rate),
		Pitch:             getEnvInt("MURF_PITCH", defaults.Pitch),
		Variation:         getEnvInt("MURF_VARIATION", defaults.Variation),
		MultiNativeLocale: os.Getenv("MURF_LOCALE"),
		Model:             getEnvString("MURF_MODEL", defaults.Model),
		SampleRate:        getEnvInt("MURF_SAMPLE_RATE", defaults.SampleRate),
		ChannelType:       getEnvString("MURF_CHANNEL_TYPE", defaults.ChannelType),
		Format:            getEnvString("MURF_FORMAT", defaults.Format),
		PronunciationJSON: os.Getenv("MURF_PRONUNCIATION"),

		// HTTP settings
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		BearerToken: os.Getenv("BEARER_TOKEN"),

		// Behavior settings
		MaxTextLength:      getEnvInt("MAX_TEXT_LENGTH", 1000),
		QueueCapacity:      getEnvInt("QUEUE_CAPACITY", 100),
		DefaultTTL:         getEnvDuration("DEFAULT_TTL", 30*time.Second),
		AutoDisconnectIdle: getEnvDuration("AUTO_DISCONNECT_IDLE", 5*time.Minute),

		// Output settings
		OutputDir: os.Getenv("OUTPUT_DIR"),

		// Discord settings
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		GuildID:        os.Getenv("GUILD_ID"),
		VoiceChannelID: os.Getenv("VOICE_CHANNEL_ID"),

		// Telemetry settings
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),

		// Logging settings
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// MurfSettings converts the voice configuration into a settings snapshot.
func (c *Config) MurfSettings() (murf.Settings, error) {
	s := murf.Settings{
		VoiceID:                 c.VoiceID,
		Style:                   c.Style,
		Rate:                    c.Rate,
		Pitch:                   c.Pitch,
		PronunciationDictionary: map[string]map[string]string{},
		Variation:               c.Variation,
		MultiNativeLocale:       c.MultiNativeLocale,
		Model:                   c.Model,
		SampleRate:              c.SampleRate,
		ChannelType:             c.ChannelType,
		Format:                  c.Format,
	}

	if c.PronunciationJSON != "" {
		if err := json.Unmarshal([]byte(c.PronunciationJSON), &s.PronunciationDictionary); err != nil {
			return murf.Settings{}, fmt.Errorf("MURF_PRONUNCIATION is not a valid JSON object: %w", err)
		}
	}

	return s, nil
}

// Validate checks that required configuration values are set and in range.
func (c *Config) Validate() error {
	if c.MurfAPIKey == "" {
		return ErrMissingAPIKey
	}

	settings, err := c.MurfSettings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.QueueCapacity < 1 {
		return errors.New("QUEUE_CAPACITY must be at least 1")
	}

	if c.AutoDisconnectIdle < 0 {
		return errors.New("AUTO_DISCONNECT_IDLE must be non-negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
