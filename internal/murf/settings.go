package murf

import (
	"errors"
	"fmt"
)

// DefaultWSURL is the Murf streaming synthesis endpoint.
const DefaultWSURL = "wss://global.api.murf.ai/v1/speech/stream-input"

// Model identifiers accepted by the service.
const (
	ModelFalcon = "FALCON"
	ModelGen2   = "GEN2"
)

// Channel layouts accepted by the service.
const (
	ChannelMono   = "MONO"
	ChannelStereo = "STEREO"
)

// ErrInvalidSettings is returned when a settings value is out of range or
// not one of the accepted enum values.
var ErrInvalidSettings = errors.New("invalid murf settings")

var (
	validSampleRates = []int{8000, 16000, 24000, 44100, 48000}
	validChannels    = []string{ChannelMono, ChannelStereo}
	validFormats     = []string{"MP3", "WAV", "FLAC", "ALAW", "ULAW", "PCM", "OGG"}
	validModels      = []string{ModelFalcon, ModelGen2}
)

// Settings is the voice and output configuration for synthesis. A snapshot
// is taken per outbound message; fields that affect the connection URL
// (SampleRate, Format, ChannelType, Model) force a reconnect when changed.
type Settings struct {
	VoiceID                 string
	Style                   string
	Rate                    int
	Pitch                   int
	PronunciationDictionary map[string]map[string]string
	Variation               int
	MultiNativeLocale       string
	Model                   string
	SampleRate              int
	ChannelType             string
	Format                  string
}

// DefaultSettings returns the service defaults.
func DefaultSettings() Settings {
	return Settings{
		VoiceID:                 "en-UK-ruby",
		Style:                   "Conversational",
		Rate:                    0,
		Pitch:                   0,
		PronunciationDictionary: map[string]map[string]string{},
		Variation:               1,
		Model:                   ModelFalcon,
		SampleRate:              44100,
		ChannelType:             ChannelMono,
		Format:                  "PCM",
	}
}

// Validate checks all settings values against the service contract.
func (s Settings) Validate() error {
	if s.VoiceID == "" {
		return fmt.Errorf("%w: voice_id cannot be empty", ErrInvalidSettings)
	}
	if s.Rate < -50 || s.Rate > 50 {
		return fmt.Errorf("%w: rate must be between -50 and 50, got %d", ErrInvalidSettings, s.Rate)
	}
	if s.Pitch < -50 || s.Pitch > 50 {
		return fmt.Errorf("%w: pitch must be between -50 and 50, got %d", ErrInvalidSettings, s.Pitch)
	}
	if s.Variation < 0 || s.Variation > 5 {
		return fmt.Errorf("%w: variation must be between 0 and 5, got %d", ErrInvalidSettings, s.Variation)
	}
	if !containsInt(validSampleRates, s.SampleRate) {
		return fmt.Errorf("%w: sample_rate must be one of %v, got %d", ErrInvalidSettings, validSampleRates, s.SampleRate)
	}
	if !containsString(validChannels, s.ChannelType) {
		return fmt.Errorf("%w: channel_type must be one of %v, got %q", ErrInvalidSettings, validChannels, s.ChannelType)
	}
	if !containsString(validFormats, s.Format) {
		return fmt.Errorf("%w: format must be one of %v, got %q", ErrInvalidSettings, validFormats, s.Format)
	}
	if !containsString(validModels, s.Model) {
		return fmt.Errorf("%w: model must be one of %v, got %q", ErrInvalidSettings, validModels, s.Model)
	}
	return nil
}

// Update is a partial settings change. Nil fields are left untouched.
type Update struct {
	VoiceID                 *string
	Style                   *string
	Rate                    *int
	Pitch                   *int
	PronunciationDictionary map[string]map[string]string
	Variation               *int
	MultiNativeLocale       *string
	Model                   *string
	SampleRate              *int
	ChannelType             *string
	Format                  *string
}

// TouchesURL reports whether the update changes a field embedded in the
// connection URL, which requires a reconnect before the next send.
func (u Update) TouchesURL() bool {
	return u.SampleRate != nil || u.Format != nil || u.ChannelType != nil || u.Model != nil
}

// Apply returns a copy of s with the update applied.
func (u Update) Apply(s Settings) Settings {
	if u.VoiceID != nil {
		s.VoiceID = *u.VoiceID
	}
	if u.Style != nil {
		s.Style = *u.Style
	}
	if u.Rate != nil {
		s.Rate = *u.Rate
	}
	if u.Pitch != nil {
		s.Pitch = *u.Pitch
	}
	if u.PronunciationDictionary != nil {
		s.PronunciationDictionary = u.PronunciationDictionary
	}
	if u.Variation != nil {
		s.Variation = *u.Variation
	}
	if u.MultiNativeLocale != nil {
		s.MultiNativeLocale = *u.MultiNativeLocale
	}
	if u.Model != nil {
		s.Model = *u.Model
	}
	if u.SampleRate != nil {
		s.SampleRate = *u.SampleRate
	}
	if u.ChannelType != nil {
		s.ChannelType = *u.ChannelType
	}
	if u.Format != nil {
		s.Format = *u.Format
	}
	return s
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
