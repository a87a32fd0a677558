package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dtcare/consult/internal/audio"
	"github.com/dtcare/consult/internal/exchange"
	"github.com/dtcare/consult/internal/feed"
	"github.com/dtcare/consult/internal/output"
	"github.com/dtcare/consult/internal/patients"
	"github.com/dtcare/consult/internal/playback"
	"github.com/dtcare/consult/internal/recorder"
)

// Config holds orchestrator configuration
type Config struct {
	// Hotkey toggles push-to-talk recording, e.g. "ctrl+shift+space"
	Hotkey string
}

// HotkeyListener is the slice of the input manager the orchestrator
// drives: listener lifecycle plus masking while the clinician types an
// answer. Implemented by input.HotkeyManager.
type HotkeyListener interface {
	Start(ctx context.Context, hotkeyStr string) error
	Stop()
	Suspend()
	Resume()
}

// HotkeyFactory builds the listener around the orchestrator's toggle
// callback. Nil disables the hotkey entirely; headless environments and
// tests leave it unset or substitute fakes.
type HotkeyFactory func(onToggle func()) HotkeyListener

// Dependencies are the collaborators constructed at startup. Everything is
// passed in explicitly so tests can substitute fakes; nothing lives in
// package-level singletons.
type Dependencies struct {
	Controller *recorder.Controller
	Exchange   *exchange.Client
	Records    patients.RecordSource
	Feed       *feed.Store
	Playback   *playback.Coordinator
	Console    *output.ConsoleOutput
	Formatter  output.Formatter // optional transcript export
	NewHotkey  HotkeyFactory    // optional push-to-talk toggle
}

// Assistant is the top-level orchestrator. It exclusively owns feed
// mutation: completed exchanges, wherever they ran, funnel through one
// channel and are appended in completion order.
type Assistant struct {
	config Config
	deps   Dependencies

	resolver *patients.Resolver
	details  *patients.DetailFetcher
	hotkey   HotkeyListener

	turns  chan exchange.TurnResult
	toggle chan struct{}

	// awaitingMRN marks that the next input line answers the candidate
	// prompt; pendingSession holds the origin session id for the resume
	awaitingMRN     bool
	pendingSession  string
	hotkeyActive    bool
	artifactMu      sync.Mutex
	artifactFetched map[int]bool
}

// NewAssistant wires the orchestrator together
func NewAssistant(config Config, deps Dependencies) *Assistant {
	a := &Assistant{
		config:          config,
		deps:            deps,
		turns:           make(chan exchange.TurnResult, 8),
		toggle:          make(chan struct{}, 4),
		artifactFetched: make(map[int]bool),
	}

	a.resolver = patients.NewResolver(deps.Exchange, func(mrn string) {
		log.Info().Str("mrn", mrn).Msg("patient selected")
	})

	if deps.NewHotkey != nil {
		a.hotkey = deps.NewHotkey(func() {
			select {
			case a.toggle <- struct{}{}:
			default:
			}
		})
	}

	a.details = patients.NewDetailFetcher(deps.Records,
		func(mrn string, d patients.Details) {
			deps.Console.RenderPatient(d.Patient, d.Visits)
		},
		func(mrn string, err error) {
			deps.Console.Error(fmt.Sprintf("patient lookup failed for %s: %v", mrn, err))
		})

	return a
}

// Run starts the interactive loop and blocks until the context is done or
// stdin closes
func (a *Assistant) Run(ctx context.Context) error {
	a.deps.Feed.OnContextChange(func(mrn string) {
		a.details.SetActive(ctx, mrn)
	})

	if a.hotkey != nil && a.deps.Controller.Mode() == recorder.ModePushToTalk {
		if err := a.startHotkey(ctx); err != nil {
			return err
		}
	}
	defer a.stopHotkey()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	a.deps.Console.Info(fmt.Sprintf("Mode: %s. Type /help for commands.", a.deps.Controller.Mode()))
	if a.hotkeyActive {
		a.deps.Console.Info(fmt.Sprintf("Press %s to toggle recording.", a.config.Hotkey))
	}

	for {
		select {
		case <-ctx.Done():
			a.discardRecording()
			return nil

		case <-a.toggle:
			a.handleToggle(ctx)

		case line, ok := <-lines:
			if !ok {
				a.discardRecording()
				return nil
			}
			a.handleLine(ctx, line)

		case turn := <-a.turns:
			a.handleTurn(ctx, turn)
		}
	}
}

// handleToggle starts a recording when idle and submits one when recording
func (a *Assistant) handleToggle(ctx context.Context) {
	if a.deps.Controller.Status() == recorder.StatusIdle {
		if err := a.deps.Controller.Start(ctx); err != nil {
			// Device failure surfaces in the feed like any other turn;
			// the controller is already back to idle
			a.handleTurn(ctx, exchange.ErrorTurn(err, ""))
			return
		}
		a.deps.Console.Info("[Recording] toggle again to stop")
		return
	}

	a.stopAndSubmit(ctx)
}

// stopAndSubmit finalizes the capture and ships it to the backend on its
// own goroutine; the result comes back through the turns channel in
// completion order
func (a *Assistant) stopAndSubmit(ctx context.Context) {
	capture, err := a.deps.Controller.Stop()
	if err != nil {
		a.handleTurn(ctx, exchange.ErrorTurn(err, ""))
		return
	}
	if capture == nil {
		return
	}

	a.deps.Console.Info("[Stopped - processing...]")

	sessionID := a.deps.Feed.SessionID()
	isSession := capture.Mode == recorder.ModeContinuous

	go func() {
		result, err := a.deps.Exchange.SendAudio(ctx, capture.WAV, sessionID, isSession)
		if err != nil {
			a.turns <- exchange.ErrorTurn(err, sessionID)
			return
		}

		turn := *result
		if isSession {
			label := turn.Question
			if label == "" {
				label = "Session Recording"
			}
			turn.Question = fmt.Sprintf("%s (%s)", label, output.FormatDuration(capture.Duration))
		}
		a.turns <- turn
	}()
}

// submitText ships typed text to the backend under the same contract as
// audio
func (a *Assistant) submitText(ctx context.Context, text string) {
	sessionID := a.deps.Feed.SessionID()

	go func() {
		result, err := a.deps.Exchange.SendText(ctx, text, sessionID, false)
		if err != nil {
			a.turns <- exchange.ErrorTurn(err, sessionID)
			return
		}
		a.turns <- *result
	}()
}

// handleTurn appends a completed exchange to the feed and renders it
func (a *Assistant) handleTurn(ctx context.Context, turn exchange.TurnResult) {
	entry := a.deps.Feed.Append(turn)

	a.deps.Console.RenderEntry(entry)
	if a.deps.Formatter != nil {
		if err := a.deps.Formatter.WriteEntry(entry); err != nil {
			log.Warn().Err(err).Msg("transcript export failed")
		}
	}

	if len(entry.Candidates) > 0 && entry.SessionID != "" {
		a.awaitingMRN = true
		a.pendingSession = entry.SessionID
		a.suspendHotkey()
		a.deps.Console.Info("Select patient MRN (blank to skip): ")
	}

	if entry.URL != "" {
		go a.attachArtifact(ctx, entry.Index, entry.URL)
	}
}

// attachArtifact fetches the entry's audio, registers it with the
// coordinator and honors autoplay if still armed for this index
func (a *Assistant) attachArtifact(ctx context.Context, index int, artifactURL string) {
	a.artifactMu.Lock()
	if a.artifactFetched[index] {
		a.artifactMu.Unlock()
		return
	}
	a.artifactFetched[index] = true
	a.artifactMu.Unlock()

	data, err := a.deps.Exchange.FetchArtifact(ctx, artifactURL)
	if err != nil {
		log.Warn().Err(err).Int("index", index).Msg("artifact fetch failed")
		a.releaseArtifact(index)
		a.deps.Console.Error(fmt.Sprintf("audio unavailable for entry %d: %v", index, err))
		return
	}

	player, err := audio.NewPlayer(data)
	if err != nil {
		log.Warn().Err(err).Int("index", index).Msg("artifact decode failed")
		a.releaseArtifact(index)
		a.deps.Console.Error(fmt.Sprintf("audio unavailable for entry %d: %v", index, err))
		return
	}

	a.deps.Playback.Register(index, player)

	if a.deps.Playback.ShouldAutoplay(index) {
		if err := a.deps.Playback.Play(index); err != nil {
			log.Warn().Err(err).Int("index", index).Msg("autoplay failed")
		}
	}
}

// releaseArtifact forgets a failed fetch so a later /play can try again
func (a *Assistant) releaseArtifact(index int) {
	a.artifactMu.Lock()
	delete(a.artifactFetched, index)
	a.artifactMu.Unlock()
}

// handleLine interprets one line of clinician input
func (a *Assistant) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)

	if a.awaitingMRN {
		a.awaitingMRN = false
		a.resumeHotkey()
		if line != "" {
			a.resolveSelection(ctx, a.pendingSession, line)
		}
		return
	}

	if line == "" {
		return
	}

	if !strings.HasPrefix(line, "/") {
		a.submitText(ctx, line)
		return
	}

	parts := strings.Fields(line)
	command, args := parts[0], parts[1:]

	switch command {
	case "/record", "/talk":
		a.handleToggle(ctx)

	case "/mode":
		if len(args) != 1 {
			a.deps.Console.Error("usage: /mode push-to-talk|continuous")
			return
		}
		a.setMode(ctx, recorder.Mode(args[0]))

	case "/surface":
		if len(args) != 1 {
			a.deps.Console.Error("usage: /surface home|assistant|radiology")
			return
		}
		a.deps.Playback.SetSurface(playback.Surface(args[0]))
		a.deps.Console.Info(fmt.Sprintf("Switched to %s surface", args[0]))

	case "/select":
		if len(args) != 1 {
			a.deps.Console.Error("usage: /select <mrn>")
			return
		}
		sessionID := a.deps.Feed.SessionID()
		if sessionID == "" {
			a.deps.Console.Error("no active session to resume")
			return
		}
		a.resolveSelection(ctx, sessionID, args[0])

	case "/play":
		if len(args) != 1 {
			a.deps.Console.Error("usage: /play <entry>")
			return
		}
		a.playEntry(ctx, args[0])

	case "/stop":
		a.deps.Playback.StopAll()

	case "/help":
		a.printHelp()

	default:
		a.deps.Console.Error(fmt.Sprintf("unknown command %s", command))
	}
}

// resolveSelection runs the disambiguation follow-up off-loop; the result
// flows back through the normal routing path
func (a *Assistant) resolveSelection(ctx context.Context, sessionID string, mrn string) {
	go func() {
		a.turns <- a.resolver.Resolve(ctx, sessionID, mrn)
	}()
}

// setMode switches capture modes. The controller discards any in-progress
// capture; the hotkey only exists in push-to-talk mode.
func (a *Assistant) setMode(ctx context.Context, mode recorder.Mode) {
	if err := a.deps.Controller.SetMode(mode); err != nil {
		a.deps.Console.Error(err.Error())
		return
	}

	if a.hotkey != nil {
		if mode == recorder.ModePushToTalk {
			if !a.hotkeyActive {
				if err := a.startHotkey(ctx); err != nil {
					a.deps.Console.Error(err.Error())
				}
			}
		} else {
			a.stopHotkey()
		}
	}

	a.deps.Console.Info(fmt.Sprintf("Switched to %s mode", mode))
}

func (a *Assistant) playEntry(ctx context.Context, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 0 || index >= a.deps.Feed.Len() {
		a.deps.Console.Error("no such feed entry")
		return
	}

	entries := a.deps.Feed.Entries()
	entry := entries[index]
	if entry.URL == "" {
		a.deps.Console.Error("entry has no audio")
		return
	}

	a.artifactMu.Lock()
	fetched := a.artifactFetched[index]
	a.artifactMu.Unlock()

	if !fetched {
		// Fetch lazily, then play once registered
		go func() {
			a.attachArtifact(ctx, index, entry.URL)
			if err := a.deps.Playback.Play(index); err != nil {
				log.Warn().Err(err).Int("index", index).Msg("playback failed")
			}
		}()
		return
	}

	if err := a.deps.Playback.Play(index); err != nil {
		a.deps.Console.Error(fmt.Sprintf("playback failed: %v", err))
	}
}

// discardRecording stops any in-progress capture on shutdown without
// submitting it
func (a *Assistant) discardRecording() {
	if a.deps.Controller.Status() == recorder.StatusRecording {
		if _, err := a.deps.Controller.Stop(); err != nil {
			log.Debug().Err(err).Msg("discarding capture on shutdown")
		}
	}
	a.deps.Playback.StopAll()
}

func (a *Assistant) startHotkey(ctx context.Context) error {
	if err := a.hotkey.Start(ctx, a.config.Hotkey); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	a.hotkeyActive = true
	return nil
}

func (a *Assistant) stopHotkey() {
	if a.hotkey != nil && a.hotkeyActive {
		a.hotkey.Stop()
		a.hotkeyActive = false
	}
}

func (a *Assistant) suspendHotkey() {
	if a.hotkey != nil && a.hotkeyActive {
		a.hotkey.Suspend()
	}
}

func (a *Assistant) resumeHotkey() {
	if a.hotkey != nil && a.hotkeyActive {
		a.hotkey.Resume()
	}
}

func (a *Assistant) printHelp() {
	a.deps.Console.Info("Commands:")
	a.deps.Console.Info("  <text>                 ask the assistant")
	a.deps.Console.Info("  /record                toggle recording")
	a.deps.Console.Info("  /mode push-to-talk|continuous")
	a.deps.Console.Info("  /surface home|assistant|radiology")
	a.deps.Console.Info("  /select <mrn>          pick a candidate patient")
	a.deps.Console.Info("  /play <entry>          play an entry's audio")
	a.deps.Console.Info("  /stop                  stop playback")
}
