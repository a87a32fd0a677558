package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtcare/consult/internal/app"
	"github.com/dtcare/consult/internal/audio"
	"github.com/dtcare/consult/internal/config"
	"github.com/dtcare/consult/internal/exchange"
	"github.com/dtcare/consult/internal/feed"
	"github.com/dtcare/consult/internal/input"
	"github.com/dtcare/consult/internal/logging"
	"github.com/dtcare/consult/internal/output"
	"github.com/dtcare/consult/internal/patients"
	"github.com/dtcare/consult/internal/playback"
	"github.com/dtcare/consult/internal/recorder"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file (default: ~/.consultrc or /etc/consult/config.yaml)")
	recordingMode = flag.String("mode", "", "Recording mode: push-to-talk or continuous")
	hotkeyCombo   = flag.String("hotkey", "", "Push-to-talk toggle hotkey (e.g. ctrl+shift+space)")
	outputFormat  = flag.String("format", "console", "Transcript export format: json, text")
	outputFile    = flag.String("output", "", "Transcript export file (default: none)")
	audioDevice   = flag.String("device", "", "Audio input device name (use --list-devices to see available devices)")
	listDevices   = flag.Bool("list-devices", false, "List all available audio input devices")
	logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion   = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	applyConfigDefaults(cfg)

	if *showVersion {
		fmt.Printf("Consult v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	logging.Init(*logLevel)

	fmt.Printf("Consult v%s (commit: %s, branch: %s, built: %s)\n",
		Version, GitCommit, GitBranch, BuildTime)
	fmt.Println("Clinical Assistant Client")
	fmt.Println()

	if *listDevices {
		dm := app.NewDeviceManager()
		if err := dm.ListDevices(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyConfigDefaults(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if !flagsSet["mode"] && cfg.Recording.Mode != "" {
		*recordingMode = cfg.Recording.Mode
	}
	if !flagsSet["hotkey"] && cfg.Recording.Hotkey != "" {
		*hotkeyCombo = cfg.Recording.Hotkey
	}
	if !flagsSet["format"] && cfg.Output.Format != "" {
		*outputFormat = cfg.Output.Format
	}
	if !flagsSet["output"] && cfg.Output.File != "" {
		*outputFile = cfg.Output.File
	}
	if !flagsSet["device"] && cfg.Audio.Device != "" {
		*audioDevice = cfg.Audio.Device
	}
	if !flagsSet["log-level"] && cfg.Log.Level != "" {
		*logLevel = cfg.Log.Level
	}
}

func run(cfg *config.Config) error {
	baseURL, err := cfg.ResolveBaseURL()
	if err != nil {
		return err
	}

	mode := recorder.Mode(*recordingMode)
	if mode == "" {
		mode = recorder.ModePushToTalk
	}

	dm := app.NewDeviceManager()
	device, err := dm.SelectDevice(*audioDevice)
	if err != nil {
		return err
	}

	audioConfig := audio.DefaultConfig()
	audioConfig.DeviceID = device.ID

	console := output.DefaultConsoleOutput()

	controller := recorder.New(recorder.Config{
		Audio:  audioConfig,
		Mode:   mode,
		OnTick: console.Timer,
	})

	client, err := exchange.NewClient(exchange.Config{
		BaseURL: baseURL,
		Timeout: time.Duration(cfg.Backend.Timeout),
	})
	if err != nil {
		return err
	}

	records, err := patients.NewClient(patients.Config{
		BaseURL: baseURL,
	})
	if err != nil {
		return err
	}

	coordinator := playback.NewCoordinator()
	store := feed.NewStore(coordinator)

	var formatter output.Formatter
	if *outputFile != "" {
		file, err := os.Create(*outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		// "console" is the live display format; file exports fall back to text
		format := *outputFormat
		if format == "console" {
			format = "text"
		}

		formatter, err = output.NewFormatter(format, file)
		if err != nil {
			return err
		}
		defer formatter.Close()
	}

	var hotkeyFactory app.HotkeyFactory
	if *hotkeyCombo != "" {
		hotkeyFactory = func(onToggle func()) app.HotkeyListener {
			return input.NewHotkeyManager(onToggle)
		}
	}

	assistant := app.NewAssistant(app.Config{
		Hotkey: *hotkeyCombo,
	}, app.Dependencies{
		Controller: controller,
		Exchange:   client,
		Records:    records,
		Feed:       store,
		Playback:   coordinator,
		Console:    console,
		Formatter:  formatter,
		NewHotkey:  hotkeyFactory,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return assistant.Run(ctx)
}
