package playback

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Surface names one of the console surfaces the clinician can switch
// between. Audio side effects are scoped to the assistant surface.
type Surface string

const (
	SurfaceHome      Surface = "home"
	SurfaceAssistant Surface = "assistant"
	SurfaceRadiology Surface = "radiology"
)

// Artifact is the playback handle for one feed entry's audio
type Artifact interface {
	Play() error
	Pause()
	Rewind()
	IsPlaying() bool
}

// Coordinator enforces playback exclusivity across the feed: at most one
// artifact plays at a time, and autoplay only fires for the newest entry on
// the assistant surface. It holds index-based back-references into the feed,
// never the entries themselves.
type Coordinator struct {
	mu         sync.Mutex
	artifacts  map[int]Artifact
	surface    Surface
	armed      bool
	armedIndex int
}

// NewCoordinator creates a Coordinator starting on the home surface
func NewCoordinator() *Coordinator {
	return &Coordinator{
		artifacts:  make(map[int]Artifact),
		surface:    SurfaceHome,
		armedIndex: -1,
	}
}

// Register associates a playback handle with a feed position
func (c *Coordinator) Register(index int, artifact Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[index] = artifact
}

// Play starts the artifact at the given feed position after pausing and
// rewinding every other artifact
func (c *Coordinator) Play(index int) error {
	c.mu.Lock()
	target, ok := c.artifacts[index]
	for i, a := range c.artifacts {
		if i == index {
			continue
		}
		if a.IsPlaying() {
			a.Pause()
			a.Rewind()
		}
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return target.Play()
}

// StopAll pauses and rewinds every artifact
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked()
}

func (c *Coordinator) stopAllLocked() {
	for _, a := range c.artifacts {
		if a.IsPlaying() {
			a.Pause()
			a.Rewind()
		}
	}
}

// Interrupt is called by the feed before appending a new entry: all current
// playback stops, and autoplay arms for the incoming entry only when the
// assistant surface is active
func (c *Coordinator) Interrupt(incomingIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopAllLocked()

	c.armed = c.surface == SurfaceAssistant
	c.armedIndex = incomingIndex
}

// ShouldAutoplay reports whether the artifact at the given feed position
// should start on its own: autoplay must be armed, the position must be the
// most recent one, and the assistant surface must still be active
func (c *Coordinator) ShouldAutoplay(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed && index == c.armedIndex && c.surface == SurfaceAssistant
}

// SetSurface switches the active surface. Leaving a surface disarms
// autoplay and stops playback immediately; nothing keeps sounding in the
// background of an unrelated surface.
func (c *Coordinator) SetSurface(surface Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if surface == c.surface {
		return
	}

	c.stopAllLocked()
	c.armed = false
	c.surface = surface

	log.Debug().Str("surface", string(surface)).Msg("surface switched")
}

// ActiveSurface returns the currently active surface
func (c *Coordinator) ActiveSurface() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}
