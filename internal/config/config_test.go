package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/murfstream-go/internal/murf"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"MURF_API_KEY", "MURF_WS_URL", "MURF_VOICE_ID", "MURF_STYLE",
		"MURF_RATE", "MURF_PITCH", "MURF_VARIATION", "MURF_LOCALE",
		"MURF_MODEL", "MURF_SAMPLE_RATE", "MURF_CHANNEL_TYPE", "MURF_FORMAT",
		"MURF_PRONUNCIATION", "HTTP_PORT", "BEARER_TOKEN",
		"MAX_TEXT_LENGTH", "QUEUE_CAPACITY", "DEFAULT_TTL",
		"AUTO_DISCONNECT_IDLE", "OUTPUT_DIR", "DISCORD_TOKEN", "GUILD_ID",
		"VOICE_CHANNEL_ID", "METRICS_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func validConfig() *Config {
	defaults := murf.DefaultSettings()
	return &Config{
		MurfAPIKey:    "test-key",
		VoiceID:       defaults.VoiceID,
		Style:         defaults.Style,
		Variation:     defaults.Variation,
		Model:         defaults.Model,
		SampleRate:    defaults.SampleRate,
		ChannelType:   defaults.ChannelType,
		Format:        defaults.Format,
		HTTPPort:      8080,
		MaxTextLength: 1000,
		QueueCapacity: 100,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("MURF_API_KEY", "test-key")
	defer os.Unsetenv("MURF_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MurfWSURL != murf.DefaultWSURL {
		t.Errorf("MurfWSURL = %s, want %s", cfg.MurfWSURL, murf.DefaultWSURL)
	}
	if cfg.VoiceID != "en-UK-ruby" {
		t.Errorf("VoiceID = %s, want en-UK-ruby", cfg.VoiceID)
	}
	if cfg.Style != "Conversational" {
		t.Errorf("Style = %s, want Conversational", cfg.Style)
	}
	if cfg.Variation != 1 {
		t.Errorf("Variation = %d, want 1", cfg.Variation)
	}
	if cfg.Model != murf.ModelFalcon {
		t.Errorf("Model = %s, want %s", cfg.Model, murf.ModelFalcon)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.ChannelType != murf.ChannelMono {
		t.Errorf("ChannelType = %s, want %s", cfg.ChannelType, murf.ChannelMono)
	}
	if cfg.Format != "PCM" {
		t.Errorf("Format = %s, want PCM", cfg.Format)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.MaxTextLength != 1000 {
		t.Errorf("MaxTextLength = %d, want 1000", cfg.MaxTextLength)
	}
	if cfg.QueueCapacity != 100 {
		t.Errorf("QueueCapacity = %d, want 100", cfg.QueueCapacity)
	}
	if cfg.DefaultTTL != 30*time.Second {
		t.Errorf("DefaultTTL = %v, want 30s", cfg.DefaultTTL)
	}
	if cfg.AutoDisconnectIdle != 5*time.Minute {
		t.Errorf("AutoDisconnectIdle = %v, want 5m", cfg.AutoDisconnectIdle)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %s, want text", cfg.LogFormat)
	}
	if !cfg.AuthDisabled() {
		t.Error("AuthDisabled() = false, want true with empty BEARER_TOKEN")
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Load() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("MURF_API_KEY", "test-key")
	os.Setenv("MURF_VOICE_ID", "en-US-ken")
	os.Setenv("MURF_RATE", "25")
	os.Setenv("MURF_SAMPLE_RATE", "24000")
	os.Setenv("MURF_MODEL", "GEN2")
	os.Setenv("HTTP_PORT", "9090")
	os.Setenv("BEARER_TOKEN", "secret")
	os.Setenv("AUTO_DISCONNECT_IDLE", "10m")
	os.Setenv("MAX_TEXT_LENGTH", "500")
	os.Setenv("QUEUE_CAPACITY", "50")
	os.Setenv("METRICS_ENABLED", "true")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.VoiceID != "en-US-ken" {
		t.Errorf("VoiceID = %s, want en-US-ken", cfg.VoiceID)
	}
	if cfg.Rate != 25 {
		t.Errorf("Rate = %d, want 25", cfg.Rate)
	}
	if cfg.SampleRate != 24000 {
		t.Errorf("SampleRate = %d, want 24000", cfg.SampleRate)
	}
	if cfg.Model != murf.ModelGen2 {
		t.Errorf("Model = %s, want %s", cfg.Model, murf.ModelGen2)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.AuthDisabled() {
		t.Error("AuthDisabled() = true, want false with BEARER_TOKEN set")
	}
	if cfg.AutoDisconnectIdle != 10*time.Minute {
		t.Errorf("AutoDisconnectIdle = %v, want 10m", cfg.AutoDisconnectIdle)
	}
	if cfg.MaxTextLength != 500 {
		t.Errorf("MaxTextLength = %d, want 500", cfg.MaxTextLength)
	}
	if cfg.QueueCapacity != 50 {
		t.Errorf("QueueCapacity = %d, want 50", cfg.QueueCapacity)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %s, want json", cfg.LogFormat)
	}
}

func TestLoad_InvalidVoiceSettings(t *testing.T) {
	clearEnv(t)
	os.Setenv("MURF_API_KEY", "test-key")
	os.Setenv("MURF_RATE", "100")
	defer clearEnv(t)

	_, err := Load()
	if !errors.Is(err, murf.ErrInvalidSettings) {
		t.Errorf("Load() error = %v, want ErrInvalidSettings", err)
	}
}

func TestMurfSettings(t *testing.T) {
	cfg := validConfig()
	cfg.PronunciationJSON = `{"live":{"type":"IPA","pronunciation":"laɪv"}}`

	s, err := cfg.MurfSettings()
	if err != nil {
		t.Fatalf("MurfSettings() error = %v", err)
	}

	if s.VoiceID != cfg.VoiceID {
		t.Errorf("VoiceID = %s, want %s", s.VoiceID, cfg.VoiceID)
	}
	if got := s.PronunciationDictionary["live"]["type"]; got != "IPA" {
		t.Errorf("pronunciation type = %q, want IPA", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("derived settings invalid: %v", err)
	}
}

func TestMurfSettings_InvalidPronunciationJSON(t *testing.T) {
	cfg := validConfig()
	cfg.PronunciationJSON = `{not json`

	if _, err := cfg.MurfSettings(); err == nil {
		t.Error("MurfSettings() expected error for invalid pronunciation JSON")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.MurfAPIKey = ""

	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidate_InvalidHTTPPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTPPort = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid HTTP port")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "invalid"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid log level")
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = "invalid"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid log format")
	}
}

func TestValidate_InvalidMaxTextLength(t *testing.T) {
	cfg := validConfig()
	cfg.MaxTextLength = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid max text length")
	}
}

func TestValidate_InvalidQueueCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.QueueCapacity = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for invalid queue capacity")
	}
}

func TestGetEnvString(t *testing.T) {
	os.Setenv("TEST_STRING", "value")
	defer os.Unsetenv("TEST_STRING")

	if got := getEnvString("TEST_STRING", "default"); got != "value" {
		t.Errorf("getEnvString() = %s, want value", got)
	}

	if got := getEnvString("NONEXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %s, want default", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")

	if got := getEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}

	if got := getEnvInt("NONEXISTENT", 10); got != 10 {
		t.Errorf("getEnvInt() = %d, want 10", got)
	}

	os.Setenv("TEST_INT_INVALID", "not-a-number")
	defer os.Unsetenv("TEST_INT_INVALID")

	if got := getEnvInt("TEST_INT_INVALID", 10); got != 10 {
		t.Errorf("getEnvInt() = %d, want 10 for invalid input", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")

	if got := getEnvBool("TEST_BOOL", false); !got {
		t.Error("getEnvBool() = false, want true")
	}

	if got := getEnvBool("NONEXISTENT", true); !got {
		t.Error("getEnvBool() = false, want default true")
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "5m")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Second); got != 5*time.Minute {
		t.Errorf("getEnvDuration() = %v, want 5m", got)
	}

	if got := getEnvDuration("NONEXISTENT", 10*time.Second); got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want 10s", got)
	}

	os.Setenv("TEST_DURATION_INVALID", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_INVALID")

	if got := getEnvDuration("TEST_DURATION_INVALID", 10*time.Second); got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want 10s for invalid input", got)
	}
}
