// Package playback implements the real-time loop-swapping audio source
// described in spec.md §4.4: a beep.Streamer that loops its current
// LoopBuffer and atomically promotes a pending buffer at the next bar
// boundary.
package playback

import (
	"sync"
	"sync/atomic"

	"github.com/loopstationfm/loopstation/internal/audio"
)

// LoopSource is the sample producer the audio backend pulls from. It
// implements beep.Streamer's Stream(samples [][2]float64) (int, bool)
// without the Streamer import, so it can be driven by any [2]float64
// consumer (the Engine wraps it for beep specifically).
//
// Real-time discipline (spec.md §5): Stream never allocates and never
// makes a blocking syscall. It holds mu for each pull; Position takes the
// same mutex, so a Position call from another goroutine can delay a pull
// until it returns. The pending slot is a single-writer/single-reader
// atomic exchange.
type LoopSource struct {
	current  *audio.LoopBuffer
	position int
	pending  atomic.Pointer[audio.LoopBuffer]

	// mu guards `current`/`position`, which are written only from the
	// audio callback thread; it exists to let non-RT callers (tests,
	// status reporting via Position) observe a consistent snapshot without
	// racing the callback. Submit never takes mu; Position does.
	mu sync.Mutex

	underruns atomic.Uint64
	stopped   atomic.Bool
}

// NewLoopSource creates an idle LoopSource with no current buffer.
func NewLoopSource() *LoopSource {
	return &LoopSource{}
}

// Submit atomically replaces the pending slot. The previous pending
// buffer, if any, is dropped unconsumed: newest-wins, per spec.md §4.4.
func (s *LoopSource) Submit(buf *audio.LoopBuffer) {
	s.pending.Store(buf)
}

// Stop marks the source for shutdown: the current buffer finishes its
// loop and then the source emits silence forever, per spec.md §5. It
// does not clear the buffer immediately, so no mid-bar click is
// introduced.
func (s *LoopSource) Stop() {
	s.stopped.Store(true)
}

// Stream fills samples with the next N frames, promoting the pending
// buffer at the next bar boundary and looping silently if no buffer has
// ever been submitted. It always returns ok=true: the source never
// exhausts, per the no-stall property of spec.md §8.
func (s *LoopSource) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range samples {
		if s.current == nil {
			if !s.tryPromote() {
				samples[i] = [2]float64{0, 0}
				s.underruns.Add(1)
				continue
			}
		}

		frames := s.current.FrameCount()
		if frames == 0 {
			samples[i] = [2]float64{0, 0}
			continue
		}

		if s.position >= frames {
			// Loop end reached: this is always a bar boundary because
			// every LoopBuffer's length is an integer number of bars.
			if s.stopped.Load() {
				s.current = nil
				samples[i] = [2]float64{0, 0}
				continue
			}
			s.tryPromote()
			s.position = 0
			frames = s.current.FrameCount()
			if frames == 0 {
				samples[i] = [2]float64{0, 0}
				continue
			}
		}

		base := s.position * audio.Channels
		samples[i] = [2]float64{
			float64(s.current.Frames[base]),
			float64(s.current.Frames[base+1]),
		}
		s.position++
	}

	return len(samples), true
}

// tryPromote promotes the pending buffer to current if one is waiting.
// Returns true if `current` is non-nil after the call.
func (s *LoopSource) tryPromote() bool {
	if s.stopped.Load() {
		return s.current != nil
	}
	if next := s.pending.Swap(nil); next != nil {
		s.current = next
		s.position = 0
	}
	return s.current != nil
}

// Err always returns nil: LoopSource has no failure mode visible to the
// audio backend, per spec.md §7 ("the audio callback never surfaces
// errors upward").
func (s *LoopSource) Err() error {
	return nil
}

// Underruns returns the number of silent frames emitted while no buffer
// was current (before the first promotion, and after Stop has cleared the
// current buffer), for the snapshot's diagnostic counter.
func (s *LoopSource) Underruns() uint64 {
	return s.underruns.Load()
}

// HasPending reports whether a submitted buffer is waiting to be promoted
// at the next bar boundary, per spec.md §6's queue_has_pending. It is a
// non-consuming peek: it never swaps the pending slot.
func (s *LoopSource) HasPending() bool {
	return s.pending.Load() != nil
}

// Position reports the current playback frame index and the identity of
// the buffer currently playing, for tests and the UI snapshot.
func (s *LoopSource) Position() (buf *audio.LoopBuffer, frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.position
}
