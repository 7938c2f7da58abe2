package audio

import (
	"math"
	"time"
)

// Canonical PCM format: interleaved float32, stereo, 48kHz.
const (
	SampleRate = 48000
	Channels   = 2

	// EdgeFadeFrames is the length, in frames, of the linear ramp applied
	// at the start and end of every LoopBuffer.
	EdgeFadeFrames = 128
)

// RawAudio is an ordered sequence of interleaved PCM frames produced by
// the decoder. It is transient: consumed only by the Quantizer within a
// single producer cycle.
type RawAudio struct {
	Samples    []float32 // interleaved, len = Frames()*Channels
	SampleRate int
	Channels   int
}

// Frames returns the number of stereo frames held in the buffer.
func (r RawAudio) Frames() int {
	if r.Channels == 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// Duration returns the wall-clock length of the buffer.
func (r RawAudio) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(r.Frames()) / float64(r.SampleRate) * float64(time.Second))
}

// Origin identifies where a LoopBuffer's source audio came from. It is
// opaque to the audio pipeline and exists only for the UI domain.
type Origin struct {
	StationName string
	StationID   string
	FetchedAt   time.Time
}

// LoopBuffer is the unit of playback: a beat-aligned, edge-faded PCM loop
// produced by the Quantizer and consumed by the PlaybackEngine.
type LoopBuffer struct {
	Frames       []float32 // interleaved float32, stereo
	BPM          float64
	Bars         int
	BeatsPerBar  int
	SampleRate   int
	Origin       Origin
	// Confidence is an informational autocorrelation strength score in
	// [0,1]; it does not gate any invariant and is carried only for the
	// UI domain (see SPEC_FULL.md §9.2).
	Confidence float64
}

// FramesPerBeat is round(sample_rate * 60 / bpm), per spec.md §3.
func FramesPerBeat(sampleRate int, bpm float64) int {
	return int(math.Round(float64(sampleRate) * 60 / bpm))
}

// FrameCount returns the number of stereo frames in the buffer
// (len(Frames)/Channels).
func (l *LoopBuffer) FrameCount() int {
	if Channels == 0 {
		return 0
	}
	return len(l.Frames) / Channels
}

// FramesPerBar returns BeatsPerBar * frames-per-beat at the buffer's BPM.
func (l *LoopBuffer) FramesPerBar() int {
	return l.BeatsPerBar * FramesPerBeat(l.SampleRate, l.BPM)
}

// Duration returns the wall-clock length of one loop traversal.
func (l *LoopBuffer) Duration() time.Duration {
	if l.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(l.FrameCount()) / float64(l.SampleRate) * float64(time.Second))
}
