package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CaptureConfig mirrors the capture-relevant fields of spec.md §6.
type CaptureConfig struct {
	ListenSeconds int
	ClipSeconds   int
	Debug         bool
}

// StreamCapture opens an HTTP GET on a station URL, discards a
// warm-up window, and forwards the capture window's bytes to the caller,
// per spec.md §4.1.
type StreamCapture struct {
	cfg        CaptureConfig
	httpClient *http.Client
}

// NewStreamCapture constructs a StreamCapture with the given timeouts.
func NewStreamCapture(cfg CaptureConfig) *StreamCapture {
	return &StreamCapture{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.ListenSeconds+cfg.ClipSeconds+5) * time.Second,
		},
	}
}

// Capture performs the warm-up + capture dance and returns the raw
// container bytes captured during the clip window. The caller is
// responsible for piping the result through a Decoder.
func (c *StreamCapture) Capture(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "loopstation/1.0 (+stream capture)")
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	if c.cfg.Debug {
		log.Printf("[CAPTURE] opened %s, warming up for %ds", url, c.cfg.ListenSeconds)
	}

	if err := discardFor(ctx, resp.Body, time.Duration(c.cfg.ListenSeconds)*time.Second); err != nil {
		return nil, err
	}

	if c.cfg.Debug {
		log.Printf("[CAPTURE] warm-up complete, capturing %ds", c.cfg.ClipSeconds)
	}

	data, err := readFor(ctx, resp.Body, time.Duration(c.cfg.ClipSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	if c.cfg.Debug {
		log.Printf("[CAPTURE] captured %d bytes", len(data))
	}

	return data, nil
}

// discardFor reads and drops bytes from r until the deadline elapses or
// the stream ends.
func discardFor(ctx context.Context, r io.Reader, d time.Duration) error {
	deadline := time.Now().Add(d)
	buf := make([]byte, 32*1024)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		_ = n
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
		}
	}
	return nil
}

// readFor reads bytes from r into a buffer until the deadline elapses or
// the stream ends.
func readFor(ctx context.Context, r io.Reader, d time.Duration) ([]byte, error) {
	deadline := time.Now().Add(d)
	var out []byte
	buf := make([]byte, 32*1024)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
		}
	}
	return out, nil
}
