// Package discord plays synthesized turns into a Discord voice channel.
// The sink hands over one finished turn of 48kHz stereo PCM at a time; the
// voice manager owns the gateway session and paces opus frames onto the
// voice connection.
package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgnsrekt/murfstream-go/internal/audio"
	"layeh.com/gopus"
)

const (
	// voiceConnectTimeout bounds the wait for voice readiness after joining.
	voiceConnectTimeout = 10 * time.Second
	// voiceConnectPollInterval is the poll interval while waiting for Ready.
	voiceConnectPollInterval = 100 * time.Millisecond
	// frameDuration is one Discord audio frame (20ms).
	frameDuration = 20 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded opus frame.
	maxOpusDataBytes = 4000
)

var (
	// ErrNotConnected is returned when sending audio without a voice connection.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when the voice connection never becomes ready.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
)

// VoiceManager owns one Discord session and at most one voice connection to
// the configured guild channel.
type VoiceManager struct {
	mu              sync.Mutex
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	logger          *slog.Logger
	connected       bool
	opusEncoder     *gopus.Encoder
}

// NewVoiceManager creates a voice manager with an opus encoder matching the
// converter's output format (48kHz stereo). No network activity happens
// until Open.
func NewVoiceManager(token, guildID, channelID string, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Voip)
	if err != nil {
		return nil, err
	}

	return &VoiceManager{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		logger:      logger,
		opusEncoder: encoder,
	}, nil
}

// Open opens the Discord gateway session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close leaves the voice channel and closes the session.
func (vm *VoiceManager) Close() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection != nil {
		vm.voiceConnection.Disconnect()
		vm.voiceConnection = nil
	}
	vm.connected = false

	return vm.session.Close()
}

// Connect joins the configured voice channel. A no-op when already joined,
// so the sink can call it before every turn.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.connected && vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// Deafened: playback only, nothing inbound to process.
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return err
	}

	// discordgo exposes readiness as a bare bool, so poll it under a
	// deadline.
	deadline := time.Now().Add(voiceConnectTimeout)
	for {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		if vc.Ready {
			break
		}
		time.Sleep(voiceConnectPollInterval)
	}

	vm.voiceConnection = vc
	vm.connected = true
	vm.logger.Info("connected to voice channel")

	return nil
}

// Disconnect leaves the voice channel but keeps the session open.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	vm.connected = false

	return err
}

// IsConnected reports whether a voice connection is live.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.connected && vm.voiceConnection != nil
}

// SendAudio plays one turn of converted audio into the voice channel,
// blocking until the turn finishes or ctx is canceled. pcmData must be
// 48kHz stereo 16-bit signed little-endian, the converter's output format.
// Frames are paced at real time so Discord's jitter buffer is not flooded.
func (vm *VoiceManager) SendAudio(ctx context.Context, pcmData []byte) error {
	vm.mu.Lock()
	vc := vm.voiceConnection
	connected := vm.connected
	vm.mu.Unlock()

	if !connected || vc == nil {
		return ErrNotConnected
	}

	frameReader := audio.NewPCMFrameReader(pcmData)

	if err := vc.Speaking(true); err != nil {
		vm.logger.Error("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			vm.logger.Error("failed to clear speaking state", "error", err)
		}
	}()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, err := frameReader.ReadFrame()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			opusData, err := vm.encodeOpus(frame)
			if err != nil {
				vm.logger.Error("opus encoding failed", "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case vc.OpusSend <- opusData:
			}
		}
	}
}

// encodeOpus encodes one PCM frame (960 samples per channel, 3840 bytes) to
// opus.
func (vm *VoiceManager) encodeOpus(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return vm.opusEncoder.Encode(samples, audio.DiscordFrameSize, maxOpusDataBytes)
}
