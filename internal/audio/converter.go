package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

const (
	// DiscordSampleRate is the required sample rate for Discord voice.
	DiscordSampleRate = 48000
	// DiscordChannels is the required number of channels for Discord voice.
	DiscordChannels = 2
	// DiscordFrameSize is the number of samples per frame (20ms at 48kHz).
	DiscordFrameSize = 960
	// DiscordFrameBytes is the size of one frame in bytes (stereo 16-bit).
	DiscordFrameBytes = DiscordFrameSize * DiscordChannels * 2
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
)

// Converter handles audio format conversion for Discord.
type Converter struct {
	ffmpegPath string
}

// NewConverter creates a new audio converter.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// ConvertToDiscordPCM resamples raw 16-bit signed little-endian PCM to
// Discord-ready 48kHz stereo.
// Input: raw s16le PCM bytes at the given sample rate and channel count
// Output: raw s16le PCM bytes (48kHz, stereo)
func (c *Converter) ConvertToDiscordPCM(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("empty input data")
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid input format: %d Hz, %d channels", sampleRate, channels)
	}

	// ffmpeg command to resample raw PCM to Discord format:
	// -f s16le -ar/-ac: describe the headerless input
	// -i pipe:0: read from stdin
	// -ar 48000 -ac 2: output 48kHz stereo
	// -f s16le pipe:1: raw 16-bit output to stdout
	args := []string{
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-i", "pipe:0",
		"-ar", fmt.Sprintf("%d", DiscordSampleRate),
		"-ac", fmt.Sprintf("%d", DiscordChannels),
		"-f", "s16le",
		"-loglevel", "error",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(pcm)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, stderr.String())
	}

	return stdout.Bytes(), nil
}

// PCMFrameReader wraps raw PCM data and provides Discord-sized frames.
type PCMFrameReader struct {
	data   []byte
	offset int
}

// NewPCMFrameReader creates a new frame reader from raw PCM data.
func NewPCMFrameReader(pcmData []byte) *PCMFrameReader {
	return &PCMFrameReader{data: pcmData}
}

// ReadFrame reads the next Discord-sized frame (960 samples * 2 channels * 2 bytes).
// A trailing partial frame is zero-padded to a full frame so the tail of a
// synthesized turn is not dropped. Returns io.EOF when the data is exhausted.
func (r *PCMFrameReader) ReadFrame() ([]byte, error) {
	if r.offset >= len(r.data) {
		return nil, io.EOF
	}

	if r.offset+DiscordFrameBytes > len(r.data) {
		frame := make([]byte, DiscordFrameBytes)
		copy(frame, r.data[r.offset:])
		r.offset = len(r.data)
		return frame, nil
	}

	frame := r.data[r.offset : r.offset+DiscordFrameBytes]
	r.offset += DiscordFrameBytes
	return frame, nil
}

// Reset resets the reader to the beginning.
func (r *PCMFrameReader) Reset() {
	r.offset = 0
}

// Remaining returns the number of bytes remaining.
func (r *PCMFrameReader) Remaining() int {
	return len(r.data) - r.offset
}
