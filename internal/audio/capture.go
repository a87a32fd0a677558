package audio

import (
	"context"
	"time"
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// SampleRate is the number of samples per second (Hz)
	// The backend transcription pipeline expects 16000
	SampleRate uint32

	// Channels is the number of audio channels
	// 1 = mono (what the backend expects), 2 = stereo
	Channels uint32

	// BitDepth is the number of bits per sample
	BitDepth uint32

	// BufferFrames is the number of frames per buffer
	// Smaller = lower latency, higher CPU usage
	BufferFrames uint32

	// SampleBufferSize is the size of the channel buffer for audio samples
	// Continuous sessions can run for minutes, so the consumer must keep up;
	// this only absorbs short stalls
	SampleBufferSize int

	// DeviceID is the audio device identifier
	// Empty string = use default device
	DeviceID string
}

// DefaultConfig returns the capture configuration used for utterance recording
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       16000, // what the backend transcription expects
		Channels:         1,     // Mono
		BitDepth:         16,    // 16-bit
		BufferFrames:     480,   // 30ms at 16kHz
		SampleBufferSize: 50,    // ~1.5 seconds of slack
		DeviceID:         "",    // Default device
	}
}

// Sample represents a chunk of captured audio data
type Sample struct {
	Data      []byte    // Raw PCM-16 audio data
	Timestamp time.Time // When the sample was captured
	Frames    uint32    // Number of audio frames in this sample
}

// Capturer is the interface for audio capture implementations
type Capturer interface {
	// Start begins audio capture
	Start(ctx context.Context) error

	// Stop stops audio capture
	Stop() error

	// Samples returns a channel that receives audio samples
	Samples() <-chan Sample

	// Errors returns a channel that receives capture errors
	Errors() <-chan error

	// IsRunning returns true if capture is currently active
	IsRunning() bool
}

// NewCapturer creates a new audio capturer with the given configuration
func NewCapturer(config CaptureConfig) (Capturer, error) {
	return NewMalgoCapturer(config)
}
