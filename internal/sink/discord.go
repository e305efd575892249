package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/murfstream-go/internal/audio"
	"github.com/dgnsrekt/murfstream-go/internal/frame"
)

// Player sends Discord-ready PCM to a voice channel.
type Player interface {
	Connect(ctx context.Context) error
	SendAudio(ctx context.Context, pcmData []byte) error
}

// DiscordSink buffers each turn's audio and plays it through a voice channel
// once the Stopped frame arrives. Playback of a turn is cancelled when a new
// turn completes before the previous one finished playing.
type DiscordSink struct {
	voice     Player
	converter *audio.Converter
	logger    *slog.Logger

	turns map[string]*pcmBuffer

	mu         sync.Mutex
	cancelPlay context.CancelFunc
	playDone   chan struct{}
}

// NewDiscordSink creates a Discord playback sink.
func NewDiscordSink(voice Player, converter *audio.Converter, logger *slog.Logger) *DiscordSink {
	return &DiscordSink{
		voice:     voice,
		converter: converter,
		logger:    logger,
		turns:     make(map[string]*pcmBuffer),
	}
}

// HandleFrame buffers audio per context and starts playback on Stopped.
func (ds *DiscordSink) HandleFrame(ctx context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case frame.Started:
		ds.turns[f.ContextID] = &pcmBuffer{}
	case frame.Audio:
		buf, ok := ds.turns[f.ContextID]
		if !ok {
			return nil
		}
		buf.pcm = append(buf.pcm, f.PCM...)
		buf.sampleRate = f.SampleRate
		buf.channels = f.Channels
	case frame.Stopped:
		buf, ok := ds.turns[f.ContextID]
		if !ok {
			return nil
		}
		delete(ds.turns, f.ContextID)
		if len(buf.pcm) == 0 {
			return nil
		}
		ds.play(ctx, f.ContextID, buf)
	}
	return nil
}

// Close stops any in-flight playback and waits for it to finish.
func (ds *DiscordSink) Close() error {
	ds.stopPlayback()
	return nil
}

// play converts the buffered turn and streams it to Discord in the background
// so the dispatcher can keep draining frames. Any previous playback is
// cancelled first.
func (ds *DiscordSink) play(ctx context.Context, contextID string, buf *pcmBuffer) {
	pcm, err := ds.converter.ConvertToDiscordPCM(ctx, buf.pcm, buf.sampleRate, buf.channels)
	if err != nil {
		ds.logger.Error("audio conversion failed", "context_id", contextID, "error", err)
		return
	}

	ds.stopPlayback()

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	ds.mu.Lock()
	ds.cancelPlay = cancel
	ds.playDone = done
	ds.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		if err := ds.voice.Connect(playCtx); err != nil {
			ds.logger.Error("voice connect failed", "error", err)
			return
		}
		if err := ds.voice.SendAudio(playCtx, pcm); err != nil && playCtx.Err() == nil {
			ds.logger.Error("voice playback failed", "context_id", contextID, "error", err)
			return
		}
		ds.logger.Debug("playback finished", "context_id", contextID)
	}()
}

func (ds *DiscordSink) stopPlayback() {
	ds.mu.Lock()
	cancel := ds.cancelPlay
	done := ds.playDone
	ds.cancelPlay = nil
	ds.playDone = nil
	ds.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
