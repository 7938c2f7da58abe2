package playback

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/loopstationfm/loopstation/internal/audio"
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// streamerAdapter lets LoopSource satisfy beep.Streamer without the
// playback package importing beep in its hot path type.
type streamerAdapter struct {
	src *LoopSource
}

func (a streamerAdapter) Stream(samples [][2]float64) (n int, ok bool) {
	return a.src.Stream(samples)
}

func (a streamerAdapter) Err() error {
	return a.src.Err()
}

// Engine owns the audio output stream and exposes Submit/Shutdown, per
// spec.md §4.4. Grounded on the teacher's internal/audio/player.go
// (speaker.Init, platform-dependent buffer sizing, speaker.Play).
type Engine struct {
	source *LoopSource
	debug  bool
	mu     sync.Mutex
	closed bool
}

// NewEngine initializes the speaker output and starts pulling frames
// from a fresh LoopSource. It fails only at startup (spec.md §7:
// "Audio device failure: cannot open output -> Fatal at startup").
func NewEngine(debug bool) (*Engine, error) {
	sampleRate := beep.SampleRate(audio.SampleRate)
	bufferSize := sampleRate.N(time.Second / 10)
	if runtime.GOOS == "linux" {
		bufferSize = sampleRate.N(time.Second / 5)
	}

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sampleRate, bufferSize)
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("audio device init failed: %w", speakerErr)
	}

	e := &Engine{
		source: NewLoopSource(),
		debug:  debug,
	}

	speaker.Play(streamerAdapter{src: e.source})

	if debug {
		log.Printf("[PLAYBACK] engine started, sample rate %d, buffer %d", sampleRate, bufferSize)
	}

	return e, nil
}

// Submit atomically replaces the pending clip. The previous pending
// buffer, if any, is dropped unconsumed.
func (e *Engine) Submit(buf *audio.LoopBuffer) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.source.Submit(buf)
	if e.debug {
		log.Printf("[PLAYBACK] submitted clip bpm=%.1f bars=%d", buf.BPM, buf.Bars)
	}
}

// Shutdown stops accepting new clips. The engine finishes its current
// buffer and then emits silence, per spec.md §5.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.source.Stop()

	if e.debug {
		log.Printf("[PLAYBACK] engine shut down")
	}
}

// Underruns returns the silent-frame counter for the snapshot.
func (e *Engine) Underruns() uint64 {
	return e.source.Underruns()
}

// HasPending reports whether a submitted clip is waiting to swap in at the
// next bar boundary, for the snapshot's queue_has_pending field.
func (e *Engine) HasPending() bool {
	return e.source.HasPending()
}

// HasCurrent reports whether a buffer is currently promoted to current,
// i.e. whether the no-stall guarantee is currently in force. It is false
// before the first promotion and again once Shutdown's loop end has
// cleared the current buffer.
func (e *Engine) HasCurrent() bool {
	buf, _ := e.source.Position()
	return buf != nil
}
