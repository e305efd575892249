package murf

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// VoiceConfig is the voice portion of a synthesize message.
// MultiNativeLocale is serialized only when configured.
type VoiceConfig struct {
	VoiceID                 string                       `json:"voice_id"`
	Style                   string                       `json:"style"`
	Rate                    int                          `json:"rate"`
	Pitch                   int                          `json:"pitch"`
	PronunciationDictionary map[string]map[string]string `json:"pronunciation_dictionary"`
	Variation               int                          `json:"variation"`
	MultiNativeLocale       string                       `json:"multi_native_locale,omitempty"`
}

// SynthesizeMessage carries one unit of text plus its voice configuration.
type SynthesizeMessage struct {
	VoiceConfig VoiceConfig `json:"voice_config"`
	ContextID   string      `json:"context_id"`
	Text        string      `json:"text"`
	End         bool        `json:"end"`
}

// EndMessage tells the server to flush and finalize audio for a context
// without sending more text.
type EndMessage struct {
	ContextID string `json:"context_id"`
	End       bool   `json:"end"`
}

// ClearMessage tells the server to discard buffered and in-flight audio for
// a context immediately.
type ClearMessage struct {
	Clear     bool   `json:"clear"`
	ContextID string `json:"context_id"`
}

// NewSynthesizeMessage builds a synthesize message from a settings snapshot.
func NewSynthesizeMessage(s Settings, contextID, text string, end bool) SynthesizeMessage {
	dict := s.PronunciationDictionary
	if dict == nil {
		dict = map[string]map[string]string{}
	}
	return SynthesizeMessage{
		VoiceConfig: VoiceConfig{
			VoiceID:                 s.VoiceID,
			Style:                   s.Style,
			Rate:                    s.Rate,
			Pitch:                   s.Pitch,
			PronunciationDictionary: dict,
			Variation:               s.Variation,
			MultiNativeLocale:       s.MultiNativeLocale,
		},
		ContextID: contextID,
		Text:      text,
		End:       end,
	}
}

// ServerMessageKind identifies an inbound message variant.
type ServerMessageKind int

// Inbound message variants, dispatched in this precedence order.
const (
	KindUnknown ServerMessageKind = iota
	KindError
	KindAudio
	KindFinal
)

// ServerMessage is one decoded inbound message. ContextID is empty when the
// server omitted it; callers fall back to their tracked context id.
type ServerMessage struct {
	Kind      ServerMessageKind
	ContextID string
	// ContextIDPresent distinguishes an absent context_id from a non-string one.
	ContextIDPresent bool
	ContextIDValid   bool
	Audio            []byte
	Error            string
}

type rawServerMessage struct {
	ContextID json.RawMessage `json:"context_id"`
	Audio     *string         `json:"audio"`
	Final     *bool           `json:"final"`
	Error     *string         `json:"error"`
}

// DecodeServerMessage parses an inbound JSON text frame into a tagged
// variant. A malformed payload returns an error; a malformed audio field is
// reported by the returned message's decode error so the caller can drop the
// single message without tearing anything down.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var raw rawServerMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerMessage{}, fmt.Errorf("decode server message: %w", err)
	}

	msg := ServerMessage{Kind: KindUnknown, ContextIDValid: true}

	if len(raw.ContextID) > 0 {
		msg.ContextIDPresent = true
		var id string
		if err := json.Unmarshal(raw.ContextID, &id); err != nil {
			msg.ContextIDValid = false
		} else {
			msg.ContextID = id
		}
	}

	switch {
	case raw.Error != nil:
		msg.Kind = KindError
		msg.Error = *raw.Error
	case raw.Audio != nil:
		msg.Kind = KindAudio
		audio, err := base64.StdEncoding.DecodeString(*raw.Audio)
		if err != nil {
			return msg, fmt.Errorf("decode audio payload: %w", err)
		}
		msg.Audio = audio
	case raw.Final != nil && *raw.Final:
		msg.Kind = KindFinal
	}

	return msg, nil
}
