package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"trackprobe/cmd"
	"trackprobe/internal/audio"
	"trackprobe/internal/config"
	"trackprobe/internal/log"
	"trackprobe/internal/probe"
	"trackprobe/internal/tui"
	"trackprobe/pkg/build"
)

// main drives the probe through three phases:
//
// 1. Startup (cold path): build info, runtime settings, PortAudio,
// configuration, one-off commands.
//
// 2. Running (hot path): the capture callback feeds the analyzer while
// the probe negotiates its telemetry port and streams results. The
// process blocks on the terminal monitor or on a signal.
//
// 3. Shutdown (cold path): stop recording, tear the probe down,
// release PortAudio.
func main() {
	if err := build.Initialize(); err != nil {
		// Development builds run on the placeholder build info.
		log.Debugf("build info: %v", err)
	}

	// One thread stays dedicated to the audio callback, the other
	// covers analysis, networking and UI.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatal(err)
	}
	applyLogLevel(cfg)

	if err := audio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer audio.Terminate()

	switch cfg.Command {
	case "list":
		if err := listDevices(cfg.TUIMode); err != nil {
			log.Fatalf("listing devices: %v", err)
		}
		return
	case "run":
	default:
		// Help and version output are handled inside ParseArgs.
		return
	}

	p, err := probe.New(cfg)
	if err != nil {
		log.Fatalf("wiring probe: %v", err)
	}

	// The first callback fires inside Start; the hot path begins here.
	if err := p.Start(); err != nil {
		p.Close()
		log.Fatalf("starting probe: %v", err)
	}

	recording := false
	if cfg.Recording.Enabled {
		path := recordingPath(cfg)
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			log.Errorf("recording directory: %v", err)
		} else if err := p.Engine().StartRecording(path); err != nil {
			log.Errorf("recording: %v", err)
		} else {
			recording = true
			log.Infof("Recording to %s", path)
		}
	}

	if cfg.TUIMode {
		if err := tui.StartMeterUI(p.Status); err != nil {
			log.Errorf("monitor: %v", err)
		}
	} else {
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		<-done
	}

	if recording {
		if err := p.Engine().StopRecording(); err != nil {
			log.Errorf("stopping recording: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// applyLogLevel configures the logger from the merged configuration.
func applyLogLevel(cfg *config.Config) {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	if parsed, ok := log.ParseLevel(level); ok {
		log.SetLevel(parsed)
	}
}

// listDevices prints the device table, or opens the picker in TUI mode.
func listDevices(tuiMode bool) error {
	if tuiMode {
		return tui.StartDeviceListUI()
	}
	return audio.ListDevices()
}

// recordingPath names a capture file inside the configured directory.
func recordingPath(cfg *config.Config) string {
	name := "recording-" + time.Now().UTC().Format("02-01-2006-150405") +
		"." + cfg.Recording.Format
	return filepath.Join(cfg.Recording.OutputDir, name)
}
