package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os/exec"
)

// DecoderConfig names the external decoder binary. Arguments are fixed
// by spec.md §6 and are not configurable.
type DecoderConfig struct {
	Binary string // default "ffmpeg"
	Debug  bool
}

// Decoder invokes an external subprocess to convert arbitrary
// containerized stream bytes into canonical PCM, per spec.md §4.1/§6.
type Decoder struct {
	cfg DecoderConfig
}

// NewDecoder constructs a Decoder for the given binary.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	return &Decoder{cfg: cfg}
}

// Decode pipes input through the decoder subprocess and parses the
// resulting raw interleaved float32 PCM.
func (d *Decoder) Decode(ctx context.Context, input []byte) (RawAudio, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "-",
		"-f", "f32le",
		"-ar", "48000",
		"-ac", "2",
		"-acodec", "pcm_f32le",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.cfg.Binary, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return RawAudio{}, fmt.Errorf("%w: %v", ErrDecoderSpawnFailed, err)
	}

	err := cmd.Wait()
	if err != nil {
		if d.cfg.Debug {
			log.Printf("[DECODER] stderr: %s", stderr.String())
		}
		return RawAudio{}, fmt.Errorf("%w: %v", ErrDecoderExitNonZero, err)
	}

	samples := bytesToFloat32(stdout.Bytes())

	return RawAudio{
		Samples:    samples,
		SampleRate: SampleRate,
		Channels:   Channels,
	}, nil
}

func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
