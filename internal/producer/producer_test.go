package producer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopstationfm/loopstation/internal/audio"
	"github.com/loopstationfm/loopstation/internal/catalog"
	"github.com/loopstationfm/loopstation/internal/state"
)

type fakeSink struct {
	mu   sync.Mutex
	subs []*audio.LoopBuffer
}

func (f *fakeSink) Submit(buf *audio.LoopBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, buf)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSink) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) > 0
}

func newCatalogServer(t *testing.T, streamURL string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/stations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]catalog.StationRef{{ID: "1", Name: "Test Station"}})
	})
	mux.HandleFunc("/stations/1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalog.Station{
			Name:      "Test Station",
			Country:   "US",
			StreamURL: streamURL,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStreamServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		for i := 0; i < 200; i++ {
			_, _ = w.Write(buf)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// S5: decoder exits 1 -> status becomes Error; no submit issued.
func TestProducerCycleRecordsDecoderFailure(t *testing.T) {
	streamSrv := newStreamServer(t)
	catalogSrv := newCatalogServer(t, streamSrv.URL)

	catalogClient := catalog.NewClient(catalog.ClientConfig{
		BaseURL:           catalogSrv.URL,
		Timeout:           2 * time.Second,
		Retries:           0,
		RequestsPerSecond: 1000,
		BurstSize:         10,
		UserAgent:         "loopstation-test",
	})

	sink := &fakeSink{}
	snapshot := state.NewCell()
	intents := state.NewIntents()

	p := New(Config{
		StationChangeInterval: time.Hour,
		QuantizerConfig: audio.QuantizerConfig{
			BpmMode: audio.BpmFixed, BpmFixed: 120, BpmMin: 70, BpmMax: 170,
			Bars: 1, BeatsPerBar: 4,
		},
		CaptureConfig: audio.CaptureConfig{ListenSeconds: 0, ClipSeconds: 1},
		DecoderConfig: audio.DecoderConfig{Binary: "false"},
	}, catalogClient, sink, snapshot, intents)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.runCycle(ctx)

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, state.StatusError, snapshot.Load().ProducerStatus)
}

func TestProducerSkipNowTriggersImmediateCycle(t *testing.T) {
	p := &Producer{skip: make(chan struct{}, 1)}
	p.SkipNow()
	select {
	case <-p.skip:
	default:
		t.Fatal("expected SkipNow to enqueue a signal")
	}
}

func TestProducerApplyIntentsTogglesBpmMode(t *testing.T) {
	p := &Producer{cfg: Config{QuantizerConfig: audio.QuantizerConfig{BpmMode: audio.BpmAuto, Bars: 2, BeatsPerBar: 4}}}
	shutdown := p.applyIntents([]state.Intent{{Kind: state.IntentToggleBpmMode}})
	require.False(t, shutdown)
	assert.Equal(t, audio.BpmFixed, p.cfg.QuantizerConfig.BpmMode)
}

func TestProducerApplyIntentsShutdown(t *testing.T) {
	p := &Producer{cfg: Config{QuantizerConfig: audio.QuantizerConfig{Bars: 2, BeatsPerBar: 4}}}
	shutdown := p.applyIntents([]state.Intent{{Kind: state.IntentShutdown}})
	assert.True(t, shutdown)
}
