// Package producer implements the station→clip cycle orchestrator of
// spec.md §4.3: a ticker-driven task that asks the catalog for a station,
// captures and decodes a clip, quantizes it to a LoopBuffer, and hands it
// to the playback engine through a bounded newest-wins channel.
package producer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"time"

	"github.com/loopstationfm/loopstation/internal/audio"
	"github.com/loopstationfm/loopstation/internal/catalog"
	"github.com/loopstationfm/loopstation/internal/state"
)

// Sink is the destination for completed loops: internal/playback.Engine
// satisfies this with its Submit/HasPending methods.
type Sink interface {
	Submit(buf *audio.LoopBuffer)
	HasPending() bool
}

// Filters mirrors spec.md §4.3 step 1's `{search, region, random, seed}`.
type Filters struct {
	Search string
	Region string
	Random bool
	Seed   string
}

// Config configures one Producer.
type Config struct {
	StationChangeInterval time.Duration
	Filters               Filters
	QuantizerConfig       audio.QuantizerConfig
	CaptureConfig         audio.CaptureConfig
	DecoderConfig         audio.DecoderConfig
	Debug                 bool
}

// Producer runs the periodic fetch→decode→quantize cycle described in
// spec.md §4.3.
type Producer struct {
	cfg       Config
	catalog   *catalog.Client
	cache     *catalog.Cache
	fetcher   *audio.Fetcher
	quantizer *audio.Quantizer
	sink      Sink
	snapshot  *state.Cell
	intents   *state.Intents
	skip      chan struct{}
}

// New builds a Producer wired to a catalog client, a playback sink, and
// the shared snapshot cell and intent queue.
func New(cfg Config, catalogClient *catalog.Client, sink Sink, snapshot *state.Cell, intents *state.Intents) *Producer {
	p := &Producer{
		cfg:       cfg,
		catalog:   catalogClient,
		cache:     catalog.NewCache(),
		fetcher:   audio.NewFetcher(cfg.CaptureConfig, cfg.DecoderConfig),
		quantizer: audio.NewQuantizer(cfg.QuantizerConfig),
		sink:      sink,
		snapshot:  snapshot,
		intents:   intents,
		skip:      make(chan struct{}, 1),
	}
	p.publishBpmMode()
	return p
}

// SkipNow short-circuits the current wait and triggers an immediate
// cycle, per spec.md §4.3's manual SkipNow signal.
func (p *Producer) SkipNow() {
	select {
	case p.skip <- struct{}{}:
	default:
	}
}

// Run drives the periodic cycle until ctx is cancelled. An in-flight
// decoder is killed on cancellation because every blocking call in
// runCycle is given ctx.
func (p *Producer) Run(ctx context.Context) {
	intentBatches := make(chan []state.Intent)
	go func() {
		for {
			batch, ok := p.intents.Recv(ctx)
			if !ok {
				return
			}
			select {
			case intentBatches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	p.runCycle(ctx)

	ticker := time.NewTicker(p.cfg.StationChangeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.skip:
			p.runCycle(ctx)
		case <-ticker.C:
			p.runCycle(ctx)
		case batch := <-intentBatches:
			if p.applyIntents(batch) {
				return
			}
			ticker.Reset(p.cfg.StationChangeInterval)
		}
	}
}

// applyIntents acts on control intents that affect the producer's own
// config (bpm_mode toggle, bars, skip-now), per spec.md §5's "mutable
// knobs ... communicated via the control-intent channel". It returns true
// if a Shutdown intent was seen.
func (p *Producer) applyIntents(batch []state.Intent) bool {
	for _, in := range batch {
		switch in.Kind {
		case state.IntentSkipNow:
			p.SkipNow()
		case state.IntentToggleBpmMode:
			if p.cfg.QuantizerConfig.BpmMode == audio.BpmAuto {
				p.cfg.QuantizerConfig.BpmMode = audio.BpmFixed
			} else {
				p.cfg.QuantizerConfig.BpmMode = audio.BpmAuto
			}
			p.quantizer = audio.NewQuantizer(p.cfg.QuantizerConfig)
			p.publishBpmMode()
		case state.IntentSetBars:
			p.cfg.QuantizerConfig.Bars = in.Bars
			p.quantizer = audio.NewQuantizer(p.cfg.QuantizerConfig)
		case state.IntentShutdown:
			return true
		}
	}
	return false
}

func (p *Producer) runCycle(ctx context.Context) {
	p.setStatus(state.StatusFetching, "")

	ref, err := p.requestStationWithBackoff(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNoStations) {
			p.setStatus(state.StatusError, "no stations match current filters")
			return
		}
		p.setStatus(state.StatusError, err.Error())
		return
	}

	station, err := p.resolveStation(ctx, ref)
	if err != nil {
		p.setStatus(state.StatusError, fmt.Sprintf("resolve %s: %v", ref.Name, err))
		return
	}

	p.debugLog("selected station %s (%s)", station.Name, station.Country)

	p.setStatus(state.StatusDecoding, "")
	raw, err := p.fetcher.Fetch(ctx, station.StreamURL)
	if err != nil {
		p.setStatus(state.StatusError, fmt.Sprintf("fetch %s: %v", station.Name, err))
		return
	}

	p.setStatus(state.StatusQuantizing, "")
	loop, err := p.quantizer.Quantize(raw)
	if err != nil {
		p.setStatus(state.StatusError, fmt.Sprintf("quantize %s: %v", station.Name, err))
		return
	}

	loop.Origin = audio.Origin{
		StationName: station.Name,
		StationID:   ref.ID,
		FetchedAt:   time.Now(),
	}

	p.sink.Submit(loop)

	p.snapshot.Update(func(s state.Snapshot) state.Snapshot {
		s.Station = &state.Station{Name: station.Name, Country: station.Country}
		s.BPM = loop.BPM
		s.HasBPM = true
		s.Bars = loop.Bars
		s.ProducerStatus = state.StatusIdle
		s.StatusMessage = ""
		s.QueueHasPending = p.sink.HasPending()
		return s
	})
}

// publishBpmMode mirrors the producer's own QuantizerConfig.BpmMode into
// the snapshot's bpm_mode field, per spec.md §6, so the UI domain never
// reads a stale or default mode. It is a no-op when called without a
// snapshot cell (as in unit tests that construct a bare Producer).
func (p *Producer) publishBpmMode() {
	if p.snapshot == nil {
		return
	}
	mode := state.BpmModeAuto
	if p.cfg.QuantizerConfig.BpmMode == audio.BpmFixed {
		mode = state.BpmModeFixed
	}
	p.snapshot.Update(func(s state.Snapshot) state.Snapshot {
		s.BpmMode = mode
		return s
	})
}

// requestStationWithBackoff implements spec.md §4.3 step 1's retry policy:
// back off 1s and retry up to 3 times on an empty catalog response, then
// surface NoStations.
func (p *Producer) requestStationWithBackoff(ctx context.Context) (catalog.StationRef, error) {
	query := catalog.Query{
		Text:   p.cfg.Filters.Search,
		Region: p.cfg.Filters.Region,
		Random: p.cfg.Filters.Random,
		Seed:   p.cfg.Filters.Seed,
	}

	const maxRetries = 3
	for attempt := 0; attempt <= maxRetries; attempt++ {
		refs, err := p.catalog.List(ctx, query)
		if err != nil {
			return catalog.StationRef{}, err
		}
		if len(refs) > 0 {
			return refs[p.pickIndex(len(refs))], nil
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return catalog.StationRef{}, ctx.Err()
		}
	}
	return catalog.StationRef{}, catalog.ErrNoStations
}

// pickIndex chooses one of n catalog results. With a configured seed it
// uses a seeded source for deterministic station selection across runs,
// per spec.md §6's seed field; otherwise it falls back to the global
// source.
func (p *Producer) pickIndex(n int) int {
	if p.cfg.Filters.Seed == "" {
		return rand.Intn(n)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.cfg.Filters.Seed))
	src := rand.New(rand.NewSource(int64(h.Sum64())))
	return src.Intn(n)
}

func (p *Producer) resolveStation(ctx context.Context, ref catalog.StationRef) (*catalog.Station, error) {
	if cached, ok := p.cache.Get(ref); ok {
		return cached, nil
	}
	station, err := p.catalog.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.cache.Put(ref, station)
	return station, nil
}

func (p *Producer) setStatus(status state.ProducerStatus, msg string) {
	p.snapshot.Update(func(s state.Snapshot) state.Snapshot {
		s.ProducerStatus = status
		s.StatusMessage = msg
		return s
	})
	if status == state.StatusError {
		p.debugLog("error: %s", msg)
	}
}

func (p *Producer) debugLog(format string, args ...interface{}) {
	if !p.cfg.Debug {
		return
	}
	log.Printf("[PRODUCER] "+format, args...)
}
