// Package murf implements a streaming client for the Murf text-to-speech
// websocket API. One Service owns a single logical connection, multiplexing
// at most one synthesis context over it at a time and delivering decoded
// audio as an ordered frame stream.
package murf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/murfstream-go/internal/frame"
	"github.com/dgnsrekt/murfstream-go/internal/metrics"
)

const (
	// frameBuffer is the capacity of the outbound frame channel.
	frameBuffer = 256
	// reconnectBackoffMin and reconnectBackoffMax bound the receive loop's
	// reconnect delay after the server drops the connection.
	reconnectBackoffMin = time.Second
	reconnectBackoffMax = 30 * time.Second
)

// ErrMissingAPIKey is returned when constructing a service without a key.
var ErrMissingAPIKey = errors.New("murf API key is required")

// Config configures a Service.
type Config struct {
	// APIKey authenticates the websocket connection. Required.
	APIKey string
	// URL is the websocket endpoint. Defaults to DefaultWSURL.
	URL string
	// Settings is the initial voice configuration. Defaults apply when zero.
	Settings Settings
	// Logger receives structured service logs.
	Logger *slog.Logger
	// Recorder receives latency/usage measurements. May be nil.
	Recorder *metrics.Recorder
}

// Service is the synthesis driver. Speak, EndTurn, Interrupt, and
// UpdateSettings are expected to be called sequentially relative to each
// other; they may race with the receive loop, which re-checks context
// availability before acting on any inbound message.
type Service struct {
	conn     *connManager
	registry *Registry
	logger   *slog.Logger
	rec      *metrics.Recorder
	frames   chan frame.Frame

	mu        sync.Mutex
	settings  Settings
	contextID string

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewService creates a synthesis service. Construction fails when the API
// key is missing or a settings value violates the contract; no network
// activity happens until Start or the first Speak.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if cfg.Settings.VoiceID == "" && cfg.Settings.SampleRate == 0 {
		cfg.Settings = DefaultSettings()
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		conn:     newConnManager(cfg.URL, cfg.APIKey, cfg.Logger),
		registry: NewRegistry(),
		logger:   cfg.Logger,
		rec:      cfg.Recorder,
		frames:   make(chan frame.Frame, frameBuffer),
		settings: cfg.Settings,
	}, nil
}

// Frames returns the downstream output stream: started / text / audio /
// stopped notifications plus out-of-band errors. The channel is closed by
// Close.
func (s *Service) Frames() <-chan frame.Frame {
	return s.frames
}

// Settings returns the current settings snapshot.
func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Connected reports whether the websocket connection is open.
func (s *Service) Connected() bool {
	return s.conn.connected()
}

// VerifyConnection sends a keepalive probe and reports liveness.
func (s *Service) VerifyConnection() bool {
	return s.conn.verify()
}

// Start opens the connection and begins receiving. A failure leaves the
// service disconnected; the next Speak retries.
func (s *Service) Start(ctx context.Context) error {
	return s.connect(ctx)
}

// Close tears down the connection and closes the frame stream.
func (s *Service) Close() error {
	s.Disconnect()
	close(s.frames)
	return nil
}

// connect dials if needed and ensures the receive loop is running.
func (s *Service) connect(ctx context.Context) error {
	if err := s.conn.connect(ctx, s.Settings()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopDone == nil {
		loopCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.loopCancel = cancel
		s.loopDone = done
		go s.receiveLoop(loopCtx, done)
	}
	return nil
}

// Disconnect stops the receive loop, closes the transport, and
// unconditionally clears the active context. The loop cancellation is
// awaited so no message is processed against a torn-down context.
func (s *Service) Disconnect() {
	s.mu.Lock()
	cancel := s.loopCancel
	done := s.loopDone
	s.loopCancel = nil
	s.loopDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.rec.CancelTimers()

	if err := s.conn.close(); err != nil {
		s.logger.Error("error closing murf websocket", "error", err)
	}

	if done != nil {
		<-done
	}

	// Clear the context regardless of whether close succeeded so no stale
	// state dangles into the next turn.
	s.mu.Lock()
	id := s.contextID
	s.contextID = ""
	s.mu.Unlock()
	if id != "" {
		s.registry.End(id)
	}
}

// Speak synthesizes one unit of text. It returns after the synthesize
// message is accepted for sending; audio arrives asynchronously on the frame
// stream, and the returned Turn's Done channel closes when the context is
// torn down. Failures are recoverable per call: the context is torn down,
// a stopped notification is emitted, and the error is returned.
func (s *Service) Speak(ctx context.Context, text string) (*Turn, error) {
	if !s.conn.connected() {
		if err := s.connect(ctx); err != nil {
			s.emit(ctx, frame.Error{Message: "murf connection error", Cause: err})
			return nil, err
		}
	}

	s.mu.Lock()
	settings := s.settings
	contextID := s.contextID
	s.mu.Unlock()

	// The registry is authoritative for liveness: a final or error may have
	// torn the context down after the snapshot above, in which case turnFor
	// returns nil and the id must not be reused.
	var turn *Turn
	if contextID != "" {
		turn = s.registry.turnFor(contextID)
	}

	started := false
	if turn == nil {
		s.rec.StartTTFB()
		s.rec.AddTurn(ctx)
		turn = s.registry.Begin()
		contextID = turn.ContextID
		s.mu.Lock()
		s.contextID = contextID
		s.mu.Unlock()
		started = true
		s.emit(ctx, frame.Started{ContextID: contextID})
		s.logger.Debug("began synthesis context", "context_id", contextID)
	}

	// Restate the input for the downstream text aggregator; the text is not
	// resynthesized from this frame.
	s.emit(ctx, frame.Text{ContextID: contextID, Text: text})

	msg := NewSynthesizeMessage(settings, contextID, text, false)
	if err := s.conn.writeJSON(msg); err != nil {
		s.logger.Error("error sending synthesize message", "context_id", contextID, "error", err)
		s.emit(ctx, frame.Error{Message: "murf send error", Cause: err})
		s.emit(ctx, frame.Stopped{ContextID: contextID})
		s.rec.CancelTimers()
		s.registry.End(contextID)
		s.clearContext(contextID)
		return nil, err
	}

	s.rec.AddCharacters(ctx, len(text))
	s.logger.Debug("sent synthesize message", "context_id", contextID, "text_length", len(text), "new_context", started)
	return turn, nil
}

// EndTurn signals the server to flush and finalize audio for the current
// context without sending more text. A no-op when no turn is in flight.
func (s *Service) EndTurn() error {
	s.mu.Lock()
	contextID := s.contextID
	s.mu.Unlock()

	if contextID == "" || !s.conn.connected() {
		return nil
	}

	if err := s.conn.writeJSON(EndMessage{ContextID: contextID, End: true}); err != nil {
		s.logger.Error("error finalizing turn", "context_id", contextID, "error", err)
		return err
	}
	s.logger.Debug("marked turn complete", "context_id", contextID)
	return nil
}

// Interrupt cancels the current turn: timers stop, the context is torn down
// locally, and a clear message asks the server to discard buffered audio.
// The local context id is cleared regardless of send success.
func (s *Service) Interrupt(ctx context.Context) {
	s.rec.CancelTimers()

	s.mu.Lock()
	contextID := s.contextID
	s.contextID = ""
	s.mu.Unlock()

	if contextID == "" {
		return
	}

	s.registry.End(contextID)
	s.emit(ctx, frame.Stopped{ContextID: contextID})

	if s.conn.connected() {
		if err := s.conn.writeJSON(ClearMessage{Clear: true, ContextID: contextID}); err != nil {
			s.logger.Error("error clearing context", "context_id", contextID, "error", err)
		} else {
			s.logger.Debug("cleared context", "context_id", contextID)
		}
	}
}

// UpdateSettings applies a partial settings change. Changes to URL-affecting
// fields (sample rate, format, channel layout, model) reconnect synchronously
// before returning; other fields take effect on the next outbound message.
func (s *Service) UpdateSettings(ctx context.Context, u Update) error {
	s.mu.Lock()
	next := u.Apply(s.settings)
	s.mu.Unlock()

	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()

	if u.TouchesURL() && s.conn.connected() {
		s.Disconnect()
		if err := s.connect(ctx); err != nil {
			return err
		}
		s.logger.Info("reconnected murf after URL parameter change")
	}
	return nil
}

// SetVoice updates the voice id for subsequent synthesis.
func (s *Service) SetVoice(ctx context.Context, voiceID string) error {
	s.logger.Info("setting murf voice", "voice_id", voiceID)
	return s.UpdateSettings(ctx, Update{VoiceID: &voiceID})
}

// clearContext resets the locally tracked context id if it still matches.
func (s *Service) clearContext(id string) {
	s.mu.Lock()
	if s.contextID == id {
		s.contextID = ""
	}
	s.mu.Unlock()
}

func (s *Service) currentContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

func (s *Service) emit(ctx context.Context, f frame.Frame) {
	select {
	case s.frames <- f:
	case <-ctx.Done():
	}
}

// receiveLoop reads inbound messages for the lifetime of the connection.
// When the server closes the connection without a final marker, the loop
// reconnects with bounded backoff instead of terminating, masking transient
// drops from the driver. Only Disconnect stops it.
func (s *Service) receiveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := reconnectBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		ws, msgType, data, err := s.conn.read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.conn.drop(ws)
			s.logger.Debug("murf websocket ended, reconnecting", "error", err, "backoff", backoff)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectBackoffMax {
				backoff = reconnectBackoffMax
			}

			if err := s.conn.connect(ctx, s.Settings()); err != nil {
				s.logger.Error("murf reconnect failed", "error", err)
			}
			continue
		}
		backoff = reconnectBackoffMin

		if msgType != websocket.TextMessage {
			s.logger.Warn("received unexpected non-text message", "type", msgType)
			continue
		}

		s.handleMessage(ctx, data)
	}
}

// handleMessage decodes and dispatches one inbound message. Dispatch
// precedence is error, then audio, then final; anything else is logged and
// ignored. Messages for unavailable contexts are dropped silently.
func (s *Service) handleMessage(ctx context.Context, data []byte) {
	msg, err := DecodeServerMessage(data)
	if err != nil {
		if msg.Kind == KindAudio {
			// A bad audio payload drops this message only; the context and
			// connection survive.
			s.logger.Error("error decoding audio data", "error", err)
			return
		}
		s.logger.Error("error processing murf message", "error", err)
		s.emit(ctx, frame.Error{Message: "error processing murf message", Cause: err})
		return
	}

	if !msg.ContextIDValid {
		s.logger.Warn("invalid context_id type in murf message")
		return
	}

	contextID := msg.ContextID
	if !msg.ContextIDPresent {
		// Defensive default, not authoritative.
		contextID = s.currentContextID()
	}

	if !s.registry.Available(contextID) {
		// Stale context, e.g. an interruption raced with in-flight server
		// messages. Drop without side effects.
		return
	}

	switch msg.Kind {
	case KindError:
		errMsg := fmt.Sprintf("murf error: %s", msg.Error)
		s.logger.Error(errMsg, "context_id", contextID)
		s.emit(ctx, frame.Stopped{ContextID: contextID})
		s.rec.CancelTimers()
		s.emit(ctx, frame.Error{Message: errMsg})
		s.registry.End(contextID)
		s.clearContext(contextID)

	case KindAudio:
		s.rec.StopTTFB(ctx)
		sampleRate := s.Settings().SampleRate
		if !s.registry.Append(contextID, len(msg.Audio)) {
			return
		}
		s.emit(ctx, frame.Audio{
			ContextID:  contextID,
			PCM:        msg.Audio,
			SampleRate: sampleRate,
			Channels:   1,
		})

	case KindFinal:
		s.logger.Debug("received final output", "context_id", contextID,
			"audio_bytes", s.registry.Bytes(contextID), "duration", s.registry.Elapsed(contextID))
		s.emit(ctx, frame.Stopped{ContextID: contextID})
		s.rec.CancelTimers()
		s.registry.End(contextID)
		s.clearContext(contextID)

	default:
		s.logger.Debug("received unknown murf message", "payload", string(data))
	}
}
