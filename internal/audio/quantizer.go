package audio

import (
	"math"
)

// BpmMode selects whether the Quantizer runs autocorrelation or pins a
// fixed tempo, per spec.md §4.2.
type BpmMode int

const (
	BpmAuto BpmMode = iota
	BpmFixed
)

// QuantizerConfig mirrors spec.md §4.2's configuration block.
type QuantizerConfig struct {
	BpmMode     BpmMode
	BpmFixed    float64
	BpmMin      float64
	BpmMax      float64
	Bars        int
	BeatsPerBar int
}

// Quantizer turns RawAudio into a beat-aligned, edge-faded LoopBuffer.
type Quantizer struct {
	cfg QuantizerConfig
}

// NewQuantizer constructs a Quantizer from its configuration.
func NewQuantizer(cfg QuantizerConfig) *Quantizer {
	return &Quantizer{cfg: cfg}
}

const envelopeHop = 512

// Quantize runs steps 1-6 of spec.md §4.2 and returns the resulting
// LoopBuffer, or one of ErrAutocorrDegenerate / ErrClipTooShort /
// ErrNonFinitePCM.
func (q *Quantizer) Quantize(raw RawAudio) (*LoopBuffer, error) {
	if err := checkFinite(raw.Samples); err != nil {
		return nil, err
	}

	envelope := computeEnvelope(raw, envelopeHop)
	novelty := computeNovelty(envelope)

	envelopeRate := float64(raw.SampleRate) / float64(envelopeHop)

	var bpm float64
	var confidence float64
	if q.cfg.BpmMode == BpmFixed {
		bpm = q.cfg.BpmFixed
	} else {
		var err error
		bpm, confidence, err = detectBPM(novelty, envelopeRate, q.cfg.BpmMin, q.cfg.BpmMax)
		if err != nil {
			return nil, err
		}
	}

	fpb := FramesPerBeat(raw.SampleRate, bpm)
	if fpb <= 0 {
		return nil, ErrAutocorrDegenerate
	}

	phase := findBeatPhase(raw, fpb)

	bars, loopFrames, err := snapLength(raw.Frames(), phase, fpb, q.cfg.BeatsPerBar, q.cfg.Bars)
	if err != nil {
		return nil, err
	}

	start := phase * raw.Channels
	end := start + loopFrames*raw.Channels
	frames := make([]float32, end-start)
	copy(frames, raw.Samples[start:end])

	applyEdgeFade(frames, raw.Channels)

	return &LoopBuffer{
		Frames:      frames,
		BPM:         bpm,
		Bars:        bars,
		BeatsPerBar: q.cfg.BeatsPerBar,
		SampleRate:  raw.SampleRate,
		Confidence:  confidence,
	}, nil
}

func checkFinite(samples []float32) error {
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return ErrNonFinitePCM
		}
	}
	return nil
}

// computeEnvelope implements spec.md §4.2 step 1: mono power summed
// across channels, averaged over non-overlapping windows of `hop` frames.
func computeEnvelope(raw RawAudio, hop int) []float64 {
	frames := raw.Frames()
	if frames == 0 {
		return nil
	}
	numWindows := (frames + hop - 1) / hop
	envelope := make([]float64, numWindows)

	for w := 0; w < numWindows; w++ {
		startFrame := w * hop
		endFrame := startFrame + hop
		if endFrame > frames {
			endFrame = frames
		}
		var sum float64
		for f := startFrame; f < endFrame; f++ {
			for c := 0; c < raw.Channels; c++ {
				s := float64(raw.Samples[f*raw.Channels+c])
				sum += s * s
			}
		}
		n := endFrame - startFrame
		if n > 0 {
			envelope[w] = sum / float64(n)
		}
	}
	return envelope
}

// computeNovelty implements spec.md §4.2 step 2.
func computeNovelty(envelope []float64) []float64 {
	novelty := make([]float64, len(envelope))
	for i := 1; i < len(envelope); i++ {
		d := envelope[i] - envelope[i-1]
		if d > 0 {
			novelty[i] = d
		}
	}
	return novelty
}

// detectBPM implements spec.md §4.2 step 3: for each integer BPM in
// [bpmMin, bpmMax], score by autocorrelation of the novelty curve at the
// lag implied by that BPM, and pick the argmax, tie-breaking toward the
// BPM nearest 120.
func detectBPM(novelty []float64, envelopeRate, bpmMin, bpmMax float64) (bpm float64, confidence float64, err error) {
	if len(novelty) < 2 {
		return 0, 0, ErrAutocorrDegenerate
	}

	lo := int(math.Ceil(bpmMin))
	hi := int(math.Floor(bpmMax))
	if lo > hi {
		return 0, 0, ErrAutocorrDegenerate
	}

	bestScore := math.Inf(-1)
	bestBPM := 0
	found := false

	for b := lo; b <= hi; b++ {
		lag := int(math.Round(60 * envelopeRate / float64(b)))
		if lag <= 0 || lag >= len(novelty) {
			continue
		}
		score := autocorrelate(novelty, lag)

		if !found || score > bestScore ||
			(score == bestScore && math.Abs(float64(b)-120) < math.Abs(float64(bestBPM)-120)) {
			bestScore = score
			bestBPM = b
			found = true
		}
	}

	if !found || bestScore <= 0 {
		return 0, 0, ErrAutocorrDegenerate
	}

	// Normalize by the zero-lag energy so the score lies in [0,1].
	confidence = bestScore / autocorrelate(novelty, 0)
	return float64(bestBPM), confidence, nil
}

func autocorrelate(novelty []float64, lag int) float64 {
	var sum float64
	n := len(novelty) - lag
	for i := 0; i < n; i++ {
		sum += novelty[i] * novelty[i+lag]
	}
	return sum
}

// findBeatPhase implements spec.md §4.2 step 4: search candidate phases
// at stride fpb/32 and pick the one maximizing summed |raw| at every
// fpb-spaced offset within bounds.
func findBeatPhase(raw RawAudio, fpb int) int {
	frames := raw.Frames()
	if fpb <= 0 || frames == 0 {
		return 0
	}

	stride := fpb / 32
	if stride < 1 {
		stride = 1
	}

	bestPhase := 0
	bestScore := math.Inf(-1)

	for phi := 0; phi < fpb; phi += stride {
		var sum float64
		for k := 0; phi+k*fpb < frames; k++ {
			frame := phi + k*fpb
			for c := 0; c < raw.Channels; c++ {
				sum += math.Abs(float64(raw.Samples[frame*raw.Channels+c]))
			}
		}
		if sum > bestScore {
			bestScore = sum
			bestPhase = phi
		}
	}

	return bestPhase
}

// snapLength implements spec.md §4.2 step 5: slice exactly bars*beats*fpb
// frames starting at phase, reducing bars to the largest power of two in
// {1,2,4} that fits if the clip is too short, or failing with
// ErrClipTooShort if none fits.
func snapLength(totalFrames, phase, fpb, beatsPerBar, preferredBars int) (bars int, loopFrames int, err error) {
	available := totalFrames - phase
	if available < 0 {
		available = 0
	}

	// Try the configured bar count first, then reduce to the next
	// smaller power of two in {1,2,4} that fits.
	for _, b := range []int{4, 2, 1} {
		if b > preferredBars {
			continue
		}
		frames := b * beatsPerBar * fpb
		if available >= frames {
			return b, frames, nil
		}
	}

	return 0, 0, ErrClipTooShort
}

// applyEdgeFade implements spec.md §4.2 step 6: a 128-frame linear ramp
// 0->1 at loop start and 1->0 at loop end, both channels.
func applyEdgeFade(frames []float32, channels int) {
	totalFrames := len(frames) / channels
	fadeLen := EdgeFadeFrames
	if fadeLen > totalFrames/2 {
		fadeLen = totalFrames / 2
	}
	if fadeLen <= 0 {
		return
	}

	for i := 0; i < fadeLen; i++ {
		// Fade-in: gain 0 at the first frame, rising toward 1.
		// Fade-out: mirrored from the end, gain 0 at the last frame.
		gain := float32(i) / float32(fadeLen)

		startFrame := i
		endFrame := totalFrames - 1 - i

		for c := 0; c < channels; c++ {
			frames[startFrame*channels+c] *= gain
			frames[endFrame*channels+c] *= gain
		}
	}
}
