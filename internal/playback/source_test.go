package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopstationfm/loopstation/internal/audio"
)

func makeBuffer(value float32, frames, bars, beatsPerBar int) *audio.LoopBuffer {
	data := make([]float32, frames*audio.Channels)
	for i := range data {
		data[i] = value
	}
	return &audio.LoopBuffer{
		Frames:      data,
		BPM:         120,
		Bars:        bars,
		BeatsPerBar: beatsPerBar,
		SampleRate:  audio.SampleRate,
	}
}

// No-stall: before any submit, Stream returns silence but still ok=true.
func TestLoopSourceSilenceBeforeSubmit(t *testing.T) {
	src := NewLoopSource()
	samples := make([][2]float64, 16)
	n, ok := src.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 16, n)
	for _, s := range samples {
		assert.Equal(t, [2]float64{0, 0}, s)
	}
	assert.Equal(t, uint64(16), src.Underruns())
}

// Loop: once a buffer is submitted, reading past its length wraps.
func TestLoopSourceLoops(t *testing.T) {
	src := NewLoopSource()
	buf := makeBuffer(0.5, 4, 1, 4)
	src.Submit(buf)

	samples := make([][2]float64, 1)
	// First pull promotes pending -> current (Idle -> Playing transition).
	_, _ = src.Stream(samples)

	out := make([]float64, 0, 12)
	for i := 0; i < 12; i++ {
		_, _ = src.Stream(samples)
		out = append(out, samples[0][0])
	}

	for _, v := range out {
		assert.Equal(t, 0.5, v)
	}
}

// Newest-wins: submit A then B with no intervening boundary; B is
// promoted at the next boundary and A is never heard.
func TestLoopSourceNewestWins(t *testing.T) {
	src := NewLoopSource()
	a := makeBuffer(0.1, 8, 1, 4)
	b := makeBuffer(0.9, 8, 1, 4)

	src.Submit(a)
	src.Submit(b) // no frames pulled between submits

	samples := make([][2]float64, 1)
	seenA := false
	seenB := false
	for i := 0; i < 40; i++ {
		_, _ = src.Stream(samples)
		v := samples[0][0]
		if v == float64(float32(0.1)) {
			seenA = true
		}
		if v == float64(float32(0.9)) {
			seenB = true
		}
	}

	assert.False(t, seenA, "A should never be heard: B was submitted before any pull")
	assert.True(t, seenB)
}

// Swap-at-boundary: a buffer submitted mid-loop only takes effect once
// position wraps back to 0, never mid-buffer.
func TestLoopSourceSwapsOnlyAtBoundary(t *testing.T) {
	src := NewLoopSource()
	a := makeBuffer(0.2, 8, 1, 4)
	src.Submit(a)

	samples := make([][2]float64, 1)
	// Promote A and play its first 4 frames of an 8-frame loop.
	for i := 0; i < 4; i++ {
		_, _ = src.Stream(samples)
	}

	b := makeBuffer(0.8, 8, 1, 4)
	src.Submit(b)

	// Remaining 4 frames of A must still be A's value.
	for i := 0; i < 4; i++ {
		_, _ = src.Stream(samples)
		assert.Equal(t, float64(float32(0.2)), samples[0][0])
	}

	// Next frame (the boundary) must be B's value.
	_, _ = src.Stream(samples)
	assert.Equal(t, float64(float32(0.8)), samples[0][0])
}

// Stop: current buffer finishes its loop, then silence forever.
func TestLoopSourceStopFinishesCurrentThenSilent(t *testing.T) {
	src := NewLoopSource()
	a := makeBuffer(0.3, 4, 1, 4)
	src.Submit(a)

	samples := make([][2]float64, 1)
	_, _ = src.Stream(samples) // promote

	src.Stop()

	// 3 remaining frames of the current loop still play.
	for i := 0; i < 3; i++ {
		_, _ = src.Stream(samples)
		assert.Equal(t, float64(float32(0.3)), samples[0][0])
	}

	// Boundary reached: now silent.
	_, _ = src.Stream(samples)
	assert.Equal(t, [2]float64{0, 0}, samples[0])

	buf, _ := src.Position()
	require.Nil(t, buf)
}
