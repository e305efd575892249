// Package sink consumes the frames emitted by the synthesis service and turns
// them into side effects: files on disk, Discord voice playback. Sinks receive
// every frame in order from a single dispatcher goroutine.
package sink

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/murfstream-go/internal/frame"
)

// Sink consumes frames from the synthesis service.
type Sink interface {
	// HandleFrame processes one frame. Errors are reported, not fatal; the
	// dispatcher logs them and keeps going.
	HandleFrame(ctx context.Context, f frame.Frame) error

	// Close releases sink resources and flushes any partial turn.
	Close() error
}

// Dispatch reads frames until the channel closes or the context is cancelled,
// fanning each frame out to every sink in order.
func Dispatch(ctx context.Context, frames <-chan frame.Frame, logger *slog.Logger, sinks ...Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			for _, s := range sinks {
				if err := s.HandleFrame(ctx, f); err != nil {
					logger.Error("sink failed to handle frame", "error", err)
				}
			}
		}
	}
}
