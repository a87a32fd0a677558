package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Player plays a single WAV payload through the default output device.
// It keeps a byte cursor into the decoded PCM so playback can be paused,
// rewound to the start, and resumed.
type Player struct {
	mu           sync.Mutex
	pcm          []byte
	format       WAVFormat
	pos          int
	playing      bool
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	closed       bool
}

// NewPlayer decodes a WAV payload and prepares it for playback
func NewPlayer(wav []byte) (*Player, error) {
	pcm, format, err := DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio artifact: %w", err)
	}

	return &Player{
		pcm:    pcm,
		format: format,
	}, nil
}

// Play starts or resumes playback from the current position
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("player is closed")
	}
	if p.playing {
		return nil
	}
	if p.pos >= len(p.pcm) {
		p.pos = 0
	}

	if p.device == nil {
		if err := p.initDeviceLocked(); err != nil {
			return err
		}
	}

	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	p.playing = true
	return nil
}

// initDeviceLocked sets up the malgo context and playback device.
// Caller holds p.mu.
func (p *Player) initDeviceLocked() error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(p.format.Channels)
	deviceConfig.SampleRate = p.format.SampleRate

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		p.mu.Lock()
		n := copy(pOutputSample, p.pcm[p.pos:])
		p.pos += n
		done := p.pos >= len(p.pcm)
		p.mu.Unlock()

		// Zero-fill the remainder of the period once the payload runs out
		for i := n; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}

		if done {
			// Stopping the device from inside its own callback deadlocks,
			// so hand it off
			go p.Pause()
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	p.malgoContext = malgoCtx
	p.device = device
	return nil
}

// Pause stops playback, keeping the current position
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing || p.device == nil {
		p.mu.Unlock()
		return
	}
	p.playing = false
	device := p.device
	p.mu.Unlock()

	_ = device.Stop()
}

// Rewind resets the playback position to the start
func (p *Player) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = 0
}

// IsPlaying returns true while audio is being rendered
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Duration returns the payload length in seconds
func (p *Player) Duration() float64 {
	samplesPerChannel := len(p.pcm) / 2 / int(p.format.Channels)
	return float64(samplesPerChannel) / float64(p.format.SampleRate)
}

// Close releases the playback device
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.playing = false
	device := p.device
	malgoCtx := p.malgoContext
	p.device = nil
	p.malgoContext = nil
	p.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if malgoCtx != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
	}
}
