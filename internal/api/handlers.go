package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dgnsrekt/murfstream-go/internal/murf"
	"github.com/dgnsrekt/murfstream-go/internal/pipeline"
)

// SpeakRequest represents the request body for /v1/speak.
type SpeakRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Interrupt bool   `json:"interrupt,omitempty"`
	TTLMS     int    `json:"ttl_ms,omitempty"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// SpeakResponse represents the response body for /v1/speak.
type SpeakResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// SettingsRequest represents the request body for /v1/settings. All fields
// are optional; absent fields are left unchanged.
type SettingsRequest struct {
	VoiceID                 *string                      `json:"voice_id,omitempty"`
	Style                   *string                      `json:"style,omitempty"`
	Rate                    *int                         `json:"rate,omitempty"`
	Pitch                   *int                         `json:"pitch,omitempty"`
	PronunciationDictionary map[string]map[string]string `json:"pronunciation_dictionary,omitempty"`
	Variation               *int                         `json:"variation,omitempty"`
	MultiNativeLocale       *string                      `json:"multi_native_locale,omitempty"`
	Model                   *string                      `json:"model,omitempty"`
	SampleRate              *int                         `json:"sample_rate,omitempty"`
	ChannelType             *string                      `json:"channel_type,omitempty"`
	Format                  *string                      `json:"format,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	MurfConnected bool   `json:"murf_connected"`
}

// handleHealthz handles GET /v1/healthz requests. The connection flag is a
// live keepalive probe, not cached state.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	connected := false
	if s.tts != nil {
		connected = s.tts.VerifyConnection()
	}
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok", MurfConnected: connected})
}

// handleSpeak handles POST /v1/speak requests.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode speak request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid JSON body"})
		return
	}

	if req.Text == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "text is required"})
		return
	}

	if len(req.Text) > s.cfg.MaxTextLength {
		s.logger.Warn("text exceeds max length", "length", len(req.Text), "max", s.cfg.MaxTextLength)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "text exceeds maximum length"})
		return
	}

	if req.TTLMS < 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "ttl_ms must be non-negative"})
		return
	}

	var ttl time.Duration
	if req.TTLMS > 0 {
		ttl = time.Duration(req.TTLMS) * time.Millisecond
	} else if s.cfg.DefaultTTL > 0 {
		ttl = s.cfg.DefaultTTL
	}

	// Interrupt cancels the current turn and clears pending jobs before the
	// new one is enqueued.
	if req.Interrupt && s.queue != nil {
		s.queue.Interrupt()
	}

	job := pipeline.NewSpeakJob(req.Text, req.Voice, req.Interrupt, ttl, req.DedupeKey)

	if s.queue != nil {
		if err := s.queue.Enqueue(job); err != nil {
			if errors.Is(err, pipeline.ErrQueueFull) {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "queue is full"})
				return
			}
			if errors.Is(err, pipeline.ErrDuplicateJob) {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "duplicate job"})
				return
			}
			s.logger.Error("failed to enqueue job", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "failed to enqueue job"})
			return
		}
	}

	s.logger.Info("speak request enqueued",
		"job_id", job.ID,
		"text_length", len(req.Text),
		"interrupt", req.Interrupt,
		"ttl_ms", req.TTLMS,
		"dedupe_key", req.DedupeKey,
	)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SpeakResponse{
		JobID:   job.ID,
		Message: "job enqueued",
	})
}

// handleSettings handles POST /v1/settings requests. Updates touching a
// URL-affecting field reconnect the service before this handler returns.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.tts == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "synthesis service not configured"})
		return
	}

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode settings request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid JSON body"})
		return
	}

	update := murf.Update{
		VoiceID:                 req.VoiceID,
		Style:                   req.Style,
		Rate:                    req.Rate,
		Pitch:                   req.Pitch,
		PronunciationDictionary: req.PronunciationDictionary,
		Variation:               req.Variation,
		MultiNativeLocale:       req.MultiNativeLocale,
		Model:                   req.Model,
		SampleRate:              req.SampleRate,
		ChannelType:             req.ChannelType,
		Format:                  req.Format,
	}

	if err := s.tts.UpdateSettings(r.Context(), update); err != nil {
		if errors.Is(err, murf.ErrInvalidSettings) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("failed to apply settings", "error", err)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "failed to apply settings"})
		return
	}

	s.logger.Info("settings updated", "reconnect", update.TouchesURL())
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "settings applied"})
}

// handleInterrupt handles POST /v1/interrupt requests.
func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.queue != nil {
		s.queue.Interrupt()
	}

	s.logger.Info("interrupt requested")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "interrupted"})
}
