package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dtcare/consult/internal/audio"
)

// Mode selects between the two mutually exclusive capture modes
type Mode string

const (
	// ModePushToTalk is one-shot capture bounded by a toggle gesture
	ModePushToTalk Mode = "push-to-talk"

	// ModeContinuous is an indefinite timed session capture
	ModeContinuous Mode = "continuous"
)

// Status is the recording lifecycle state
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
)

// Capture is the finalized product of one recording
type Capture struct {
	// WAV is the complete encoded payload for one utterance or session
	WAV []byte

	// Duration is the elapsed whole seconds, tracked in continuous mode only
	Duration int

	// Mode the capture was recorded under
	Mode Mode
}

// CapturerFactory creates a fresh capturer for each recording session
type CapturerFactory func(audio.CaptureConfig) (audio.Capturer, error)

// Config holds controller configuration
type Config struct {
	Audio audio.CaptureConfig

	// NewCapturer defaults to audio.NewCapturer; tests substitute fakes
	NewCapturer CapturerFactory

	// Mode is the initial capture mode
	Mode Mode

	// Now defaults to time.Now
	Now func() time.Time

	// TickInterval defaults to one second
	TickInterval time.Duration

	// OnTick receives the elapsed seconds once per tick while a continuous
	// session is recording
	OnTick func(elapsedSeconds int)
}

// Controller is the state machine governing idle/recording transitions,
// mode selection and session timing. All transitions leave the controller
// in a consistent state: no failure path can strand it in StatusRecording,
// and timing state is cleared on every return to idle.
type Controller struct {
	mu     sync.Mutex
	config Config

	mode      Mode
	status    Status
	startedAt time.Time
	elapsed   int

	sess       *session
	tickCancel context.CancelFunc
}

// session owns one capture lifecycle: a fresh capturer plus the buffer its
// samples accumulate into. Taking the whole session out of the controller at
// stop time keeps a slow finalization from racing the next recording.
type session struct {
	mu       sync.Mutex
	capturer audio.Capturer
	buf      []byte
	done     chan struct{}
}

// New creates a Controller
func New(config Config) *Controller {
	if config.NewCapturer == nil {
		config.NewCapturer = audio.NewCapturer
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	mode := config.Mode
	if mode == "" {
		mode = ModePushToTalk
	}

	return &Controller{
		config: config,
		mode:   mode,
		status: StatusIdle,
	}
}

// Mode returns the current capture mode
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Status returns the current lifecycle state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Elapsed returns the ticking session duration in whole seconds.
// Zero outside of a continuous-mode recording.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Start begins a recording. No-op unless idle. A device failure surfaces as
// an error with the controller still idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return nil
	}
	mode := c.mode
	cfg := c.config.Audio
	c.mu.Unlock()

	capturer, err := c.config.NewCapturer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create capturer: %w", err)
	}
	if err := capturer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	sess := &session{
		capturer: capturer,
		done:     make(chan struct{}),
	}
	go sess.collect()

	c.mu.Lock()
	c.sess = sess
	c.status = StatusRecording
	if mode == ModeContinuous {
		c.startedAt = c.config.Now()
		c.elapsed = 0
		c.startTickerLocked()
	}
	c.mu.Unlock()

	log.Debug().Str("mode", string(mode)).Msg("recording started")
	return nil
}

// startTickerLocked launches the 1 Hz session timer. Caller holds c.mu.
// The tick goroutine exits as soon as the controller leaves the
// recording+continuous state; cancellation also fires on stop so no stray
// tick runs afterwards.
func (c *Controller) startTickerLocked() {
	tctx, cancel := context.WithCancel(context.Background())
	c.tickCancel = cancel

	go func() {
		ticker := time.NewTicker(c.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.status != StatusRecording || c.mode != ModeContinuous {
					c.mu.Unlock()
					return
				}
				c.elapsed = int(c.config.Now().Sub(c.startedAt) / time.Second)
				elapsed := c.elapsed
				onTick := c.config.OnTick
				c.mu.Unlock()

				if onTick != nil {
					onTick(elapsed)
				}
			}
		}
	}()
}

// Stop ends the recording and finalizes the captured audio into a single
// WAV payload. No-op unless recording; returns (nil, nil) in that case.
// The final duration is snapshotted before any finalization work so a slow
// device shutdown cannot inflate it. All paths, including failures, leave
// the controller idle with timing state cleared.
func (c *Controller) Stop() (*Capture, error) {
	c.mu.Lock()
	if c.status != StatusRecording {
		c.mu.Unlock()
		return nil, nil
	}

	if c.tickCancel != nil {
		c.tickCancel()
		c.tickCancel = nil
	}

	mode := c.mode
	final := 0
	if mode == ModeContinuous {
		final = int(c.config.Now().Sub(c.startedAt) / time.Second)
	}

	sess := c.sess
	c.sess = nil
	c.status = StatusIdle
	c.startedAt = time.Time{}
	c.elapsed = 0
	sampleRate := c.config.Audio.SampleRate
	channels := uint16(c.config.Audio.Channels)
	c.mu.Unlock()

	pcm, err := sess.finalize()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize capture: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}

	if audio.IsSilent(pcm) {
		log.Warn().Float64("level", audio.RMSLevel(pcm)).Msg("capture looks silent, sending anyway")
	}

	wav, err := audio.EncodeWAV(pcm, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}

	log.Debug().Str("mode", string(mode)).Int("duration", final).Int("bytes", len(wav)).Msg("recording stopped")
	return &Capture{WAV: wav, Duration: final, Mode: mode}, nil
}

// SetMode switches the capture mode. A recording in progress is stopped
// first and its capture discarded; a half-captured utterance never crosses
// a mode boundary.
func (c *Controller) SetMode(mode Mode) error {
	if mode != ModePushToTalk && mode != ModeContinuous {
		return fmt.Errorf("unknown recording mode %q", mode)
	}

	c.mu.Lock()
	recording := c.status == StatusRecording
	c.mu.Unlock()

	if recording {
		if _, err := c.Stop(); err != nil {
			log.Warn().Err(err).Msg("discarding capture on mode switch")
		}
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

// collect drains the capturer's channels into the session buffer until the
// capturer closes them on stop
func (s *session) collect() {
	defer close(s.done)
	samples := s.capturer.Samples()
	errors := s.capturer.Errors()
	for samples != nil || errors != nil {
		select {
		case sample, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			s.mu.Lock()
			s.buf = append(s.buf, sample.Data...)
			s.mu.Unlock()
		case err, ok := <-errors:
			if !ok {
				errors = nil
				continue
			}
			log.Warn().Err(err).Msg("capture error")
		}
	}
}

// finalize stops the capturer, waits for the collector to drain, and hands
// back the accumulated PCM
func (s *session) finalize() ([]byte, error) {
	err := s.capturer.Stop()
	<-s.done

	s.mu.Lock()
	buf := s.buf
	s.buf = nil
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return buf, nil
}
