package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgnsrekt/murfstream-go/internal/murf"
)

// ErrSynthesisFailed is returned when a turn could not be started.
var ErrSynthesisFailed = errors.New("synthesis failed")

// Synthesizer is the slice of the murf service the handler drives.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (*murf.Turn, error)
	EndTurn() error
	Interrupt(ctx context.Context)
	SetVoice(ctx context.Context, voiceID string) error
}

// Handler drives one speak job through the synthesis service and waits for
// the turn to finish. Audio frames themselves flow from the service's frame
// stream to the sinks; the handler only paces the queue.
type Handler struct {
	svc    Synthesizer
	logger *slog.Logger
}

// NewHandler creates a new turn handler.
func NewHandler(svc Synthesizer, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Handle processes a single speak job. This is the function passed to
// Queue.SetTurnHandler.
func (h *Handler) Handle(ctx context.Context, job *SpeakJob) error {
	if job.Voice != "" {
		if err := h.svc.SetVoice(ctx, job.Voice); err != nil {
			h.logger.Warn("voice change rejected", "job_id", job.ID, "voice", job.Voice, "error", err)
		}
	}

	turn, err := h.svc.Speak(ctx, job.Text)
	if err != nil {
		return errors.Join(ErrSynthesisFailed, err)
	}

	// No more text is coming for this job; ask the server to flush.
	if err := h.svc.EndTurn(); err != nil {
		h.logger.Error("end-of-turn failed", "job_id", job.ID, "error", err)
	}

	select {
	case <-turn.Done():
		h.logger.Debug("turn finished", "job_id", job.ID, "context_id", turn.ContextID)
		return nil
	case <-ctx.Done():
		// Interrupted; clear server-side buffered audio for this context.
		h.svc.Interrupt(context.Background())
		return ctx.Err()
	}
}
