package audio

import (
	"context"
	"fmt"
	"time"
)

// Fetcher composes StreamCapture and Decoder into the single contract
// spec.md §4.1 describes: capture a clip, decode it, and enforce the
// minimum-length guarantee, all under one hard wall-clock ceiling.
type Fetcher struct {
	capture *StreamCapture
	decoder *Decoder
	cfg     CaptureConfig
}

// NewFetcher constructs a Fetcher from capture and decoder configuration.
func NewFetcher(captureCfg CaptureConfig, decoderCfg DecoderConfig) *Fetcher {
	return &Fetcher{
		capture: NewStreamCapture(captureCfg),
		decoder: NewDecoder(decoderCfg),
		cfg:     captureCfg,
	}
}

// Fetch runs capture+decode under the listen_seconds+clip_seconds+5s
// ceiling from spec.md §4.1 and enforces the >= 0.9*clip_seconds*48000
// frame minimum, returning ErrClipTooShortCapture otherwise.
func (f *Fetcher) Fetch(ctx context.Context, streamURL string) (RawAudio, error) {
	budget := time.Duration(f.cfg.ListenSeconds+f.cfg.ClipSeconds+5) * time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	data, err := f.capture.Capture(ctx, streamURL)
	if err != nil {
		if ctx.Err() != nil {
			return RawAudio{}, ErrCaptureTimeout
		}
		return RawAudio{}, err
	}

	raw, err := f.decoder.Decode(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return RawAudio{}, ErrCaptureTimeout
		}
		return RawAudio{}, err
	}

	minFrames := int(0.9 * float64(f.cfg.ClipSeconds) * float64(SampleRate))
	if raw.Frames() < minFrames {
		return RawAudio{}, fmt.Errorf("%w: got %d frames, want >= %d", ErrClipTooShortCapture, raw.Frames(), minFrames)
	}

	return raw, nil
}
