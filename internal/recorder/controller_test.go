package recorder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtcare/consult/internal/audio"
)

// fakeCapturer scripts capture behavior without touching real hardware
type fakeCapturer struct {
	mu       sync.Mutex
	samples  chan audio.Sample
	errors   chan error
	running  bool
	stopped  bool
	startErr error
	stopErr  error
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		samples: make(chan audio.Sample, 64),
		errors:  make(chan error, 8),
	}
}

func (f *fakeCapturer) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	f.stopped = true
	f.running = false
	close(f.samples)
	close(f.errors)
	return f.stopErr
}

func (f *fakeCapturer) Samples() <-chan audio.Sample { return f.samples }
func (f *fakeCapturer) Errors() <-chan error         { return f.errors }

func (f *fakeCapturer) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeCapturer) feed(pcm []byte) {
	f.samples <- audio.Sample{Data: pcm, Timestamp: time.Now(), Frames: uint32(len(pcm) / 2)}
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestController(fake *fakeCapturer, clock *fakeClock, mode Mode) *Controller {
	cfg := Config{
		Audio: audio.CaptureConfig{SampleRate: 16000, Channels: 1, BitDepth: 16},
		NewCapturer: func(audio.CaptureConfig) (audio.Capturer, error) {
			return fake, nil
		},
		Mode: mode,
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return New(cfg)
}

func TestStartStopProducesWAV(t *testing.T) {
	fake := newFakeCapturer()
	c := newTestController(fake, nil, ModePushToTalk)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Status() != StatusRecording {
		t.Fatalf("expected recording, got %s", c.Status())
	}

	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	fake.feed(pcm)

	capture, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("expected idle after stop, got %s", c.Status())
	}
	if capture.Mode != ModePushToTalk {
		t.Errorf("expected push-to-talk capture, got %s", capture.Mode)
	}

	decoded, format, err := audio.DecodeWAV(capture.WAV)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if format.SampleRate != 16000 {
		t.Errorf("expected 16kHz, got %d", format.SampleRate)
	}
	if len(decoded) != len(pcm) {
		t.Errorf("expected %d PCM bytes, got %d", len(pcm), len(decoded))
	}
}

func TestStartIsNoOpWhileRecording(t *testing.T) {
	fake := newFakeCapturer()
	created := 0
	cfg := Config{
		Audio: audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		NewCapturer: func(audio.CaptureConfig) (audio.Capturer, error) {
			created++
			return fake, nil
		},
		Mode: ModePushToTalk,
	}
	c := New(cfg)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if created != 1 {
		t.Errorf("expected a single capturer, got %d", created)
	}

	fake.feed([]byte{1, 2})
	if _, err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStopIsNoOpWhenIdle(t *testing.T) {
	c := newTestController(newFakeCapturer(), nil, ModePushToTalk)

	capture, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if capture != nil {
		t.Error("expected nil capture for idle stop")
	}
}

func TestDeviceDeniedLeavesIdle(t *testing.T) {
	fake := newFakeCapturer()
	fake.startErr = fmt.Errorf("permission denied")
	c := newTestController(fake, nil, ModePushToTalk)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if c.Status() != StatusIdle {
		t.Errorf("controller must stay idle after device failure, got %s", c.Status())
	}
}

func TestFinalizationFailureReturnsToIdle(t *testing.T) {
	fake := newFakeCapturer()
	fake.stopErr = fmt.Errorf("device went away")
	c := newTestController(fake, nil, ModePushToTalk)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fake.feed([]byte{1, 2})

	if _, err := c.Stop(); err == nil {
		t.Fatal("expected finalization error")
	}
	if c.Status() != StatusIdle {
		t.Errorf("controller must return to idle after failure, got %s", c.Status())
	}
	if c.Elapsed() != 0 {
		t.Errorf("timing state must be cleared, got %d", c.Elapsed())
	}
}

func TestEmptyCaptureIsAnError(t *testing.T) {
	fake := newFakeCapturer()
	c := newTestController(fake, nil, ModePushToTalk)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Stop(); err == nil {
		t.Fatal("expected error for empty capture")
	}
	if c.Status() != StatusIdle {
		t.Errorf("expected idle, got %s", c.Status())
	}
}

func TestContinuousDurationFloors(t *testing.T) {
	fake := newFakeCapturer()
	clock := newFakeClock()
	c := newTestController(fake, clock, ModeContinuous)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(5400 * time.Millisecond)
	fake.feed(make([]byte, 320))

	capture, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if capture.Duration != 5 {
		t.Errorf("expected floored duration 5, got %d", capture.Duration)
	}
	if c.Elapsed() != 0 {
		t.Errorf("elapsed must reset after stop, got %d", c.Elapsed())
	}
}

func TestNoTicksAfterStop(t *testing.T) {
	fake := newFakeCapturer()
	clock := newFakeClock()

	var ticks atomic.Int64
	cfg := Config{
		Audio: audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		NewCapturer: func(audio.CaptureConfig) (audio.Capturer, error) {
			return fake, nil
		},
		Mode:         ModeContinuous,
		Now:          clock.Now,
		TickInterval: 2 * time.Millisecond,
		OnTick:       func(int) { ticks.Add(1) },
	}
	c := New(cfg)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond) // let a few ticks land
	fake.feed(make([]byte, 320))

	if _, err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	settled := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != settled {
		t.Errorf("ticks continued after stop: %d -> %d", settled, got)
	}
}

func TestSetModeWhileRecordingDiscardsAndGoesIdle(t *testing.T) {
	fake := newFakeCapturer()
	clock := newFakeClock()
	c := newTestController(fake, clock, ModeContinuous)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(3 * time.Second)
	fake.feed(make([]byte, 320))

	if err := c.SetMode(ModePushToTalk); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("mode switch must force idle, got %s", c.Status())
	}
	if c.Elapsed() != 0 {
		t.Errorf("timing state must be cleared on mode switch, got %d", c.Elapsed())
	}
	if c.Mode() != ModePushToTalk {
		t.Errorf("expected push-to-talk, got %s", c.Mode())
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	c := newTestController(newFakeCapturer(), nil, ModePushToTalk)
	if err := c.SetMode("webrtc"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
