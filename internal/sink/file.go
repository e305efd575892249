package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/murfstream-go/internal/frame"
	"github.com/dgnsrekt/murfstream-go/internal/wav"
)

// FileSink writes each completed synthesis turn to a WAV file in the output
// directory. Audio frames are buffered per context until the Stopped frame
// arrives, then flushed as <timestamp>-<context_id>.wav.
type FileSink struct {
	dir    string
	logger *slog.Logger

	turns map[string]*pcmBuffer
	now   func() time.Time
}

type pcmBuffer struct {
	pcm        []byte
	sampleRate int
	channels   int
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{
		dir:    dir,
		logger: logger,
		turns:  make(map[string]*pcmBuffer),
		now:    time.Now,
	}, nil
}

// HandleFrame buffers audio and flushes the turn on Stopped. Frames from
// turns the sink never saw start are ignored.
func (fs *FileSink) HandleFrame(_ context.Context, f frame.Frame) error {
	switch f := f.(type) {
	case frame.Started:
		fs.turns[f.ContextID] = &pcmBuffer{}
	case frame.Audio:
		buf, ok := fs.turns[f.ContextID]
		if !ok {
			return nil
		}
		buf.pcm = append(buf.pcm, f.PCM...)
		buf.sampleRate = f.SampleRate
		buf.channels = f.Channels
	case frame.Stopped:
		buf, ok := fs.turns[f.ContextID]
		if !ok {
			return nil
		}
		delete(fs.turns, f.ContextID)
		return fs.flush(f.ContextID, buf)
	}
	return nil
}

// Close flushes any turns that never saw a Stopped frame.
func (fs *FileSink) Close() error {
	var firstErr error
	for id, buf := range fs.turns {
		if err := fs.flush(id, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	fs.turns = make(map[string]*pcmBuffer)
	return firstErr
}

func (fs *FileSink) flush(contextID string, buf *pcmBuffer) error {
	if len(buf.pcm) == 0 {
		return nil
	}
	if buf.sampleRate == 0 {
		buf.sampleRate = wav.MurfSampleRate
	}
	if buf.channels == 0 {
		buf.channels = wav.MurfChannels
	}

	name := fmt.Sprintf("%s-%s.wav", fs.now().UTC().Format("20060102T150405"), contextID)
	path := filepath.Join(fs.dir, name)

	data := wav.WrapRawPCM(buf.pcm, buf.sampleRate, buf.channels, wav.MurfBitsPerSample)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}

	fs.logger.Info("wrote synthesized turn", "path", path, "bytes", len(buf.pcm))
	return nil
}
