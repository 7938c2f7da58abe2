package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/loopstationfm/loopstation/internal/audio"
	"github.com/loopstationfm/loopstation/internal/catalog"
	"github.com/loopstationfm/loopstation/internal/config"
	"github.com/loopstationfm/loopstation/internal/playback"
	"github.com/loopstationfm/loopstation/internal/producer"
	"github.com/loopstationfm/loopstation/internal/state"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug mode - shows detailed logging for all components")
	Version    = "dev"
)

func main() {
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("[MAIN] Debug mode enabled")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Failed to load config: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}

	if cfg.Debug {
		log.Printf("[MAIN] loopstation %s starting", Version)
		log.Printf("[MAIN] - Catalog: %s", cfg.Catalog.BaseURL)
		log.Printf("[MAIN] - Decoder: %s", cfg.Decoder.Binary)
		log.Printf("[MAIN] - Bars: %d, BeatsPerBar: %d, BpmMode: %s", cfg.Bars, cfg.BeatsPerBar, cfg.BpmMode)
	}

	if _, err := exec.LookPath(cfg.Decoder.Binary); err != nil {
		log.Fatalf("[MAIN] %v", fmt.Errorf("%w: %s", audio.ErrDecoderMissing, cfg.Decoder.Binary))
	}

	engine, err := playback.NewEngine(cfg.Debug)
	if err != nil {
		log.Fatalf("[MAIN] audio device init failed: %v", err)
	}

	catalogClient := catalog.NewClient(catalog.ClientConfig{
		BaseURL:           cfg.Catalog.BaseURL,
		Timeout:           time.Duration(cfg.Catalog.Timeout) * time.Second,
		Retries:           cfg.Catalog.Retries,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		BurstSize:         cfg.Catalog.BurstSize,
		UserAgent:         cfg.Catalog.UserAgent,
		Debug:             cfg.Debug,
	})

	bpmMode := audio.BpmAuto
	if cfg.BpmMode == config.BpmModeFixed {
		bpmMode = audio.BpmFixed
	}

	snapshot := state.NewCell()
	intents := state.NewIntents()

	prod := producer.New(producer.Config{
		StationChangeInterval: time.Duration(cfg.StationChangeSeconds) * time.Second,
		Filters: producer.Filters{
			Search: cfg.Search,
			Region: cfg.Region,
			Random: cfg.Random,
			Seed:   cfg.Seed,
		},
		QuantizerConfig: audio.QuantizerConfig{
			BpmMode:     bpmMode,
			BpmFixed:    cfg.BpmFixed,
			BpmMin:      cfg.BpmMin,
			BpmMax:      cfg.BpmMax,
			Bars:        cfg.Bars,
			BeatsPerBar: cfg.BeatsPerBar,
		},
		CaptureConfig: audio.CaptureConfig{
			ListenSeconds: cfg.ListenSeconds,
			ClipSeconds:   cfg.ClipSeconds,
			Debug:         cfg.Debug,
		},
		DecoderConfig: audio.DecoderConfig{
			Binary: cfg.Decoder.Binary,
			Debug:  cfg.Debug,
		},
		Debug: cfg.Debug,
	}, catalogClient, engine, snapshot, intents)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupGracefulShutdown(cancel, intents)

	go printSnapshots(ctx, snapshot, engine)

	prod.Run(ctx)

	engine.Shutdown()
	if cfg.Debug {
		log.Printf("[MAIN] shut down, underruns=%d", engine.Underruns())
	}
}

func setupGracefulShutdown(cancel context.CancelFunc, intents *state.Intents) {
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		sig := <-c
		log.Printf("[MAIN] received signal: %v, shutting down", sig)

		intents.Send(state.Intent{Kind: state.IntentShutdown})
		cancel()
	}()
}

// printSnapshots stands in for the terminal UI, which is out of scope:
// every 500ms it loads the snapshot, fills in the engine's underrun count,
// and prints one status line if that differs from the last line printed.
func printSnapshots(ctx context.Context, snapshot *state.Cell, engine *playback.Engine) {
	var last state.Snapshot
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := snapshot.Load()
			cur.UnderrunCount = engine.Underruns()
			if cur == last {
				continue
			}
			last = cur
			fmt.Println(formatSnapshot(cur))
		}
	}
}

func formatSnapshot(s state.Snapshot) string {
	station := "-"
	if s.Station != nil {
		station = s.Station.Name
	}
	bpm := "-"
	if s.HasBPM {
		bpm = fmt.Sprintf("%.1f", s.BPM)
	}
	line := fmt.Sprintf("[STATE] station=%s bpm=%s bars=%d mode=%s status=%s",
		station, bpm, s.Bars, s.BpmMode, s.ProducerStatus)
	if s.StatusMessage != "" {
		line += " msg=" + s.StatusMessage
	}
	return line
}
