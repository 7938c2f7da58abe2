// Package state implements the versioned broadcast cell and the bounded
// control-intent channel described in spec.md §5's "Shared state and
// ownership" table: publishers overwrite, readers observe the latest
// value, never a partial write.
package state

import "sync/atomic"

// ProducerStatus mirrors spec.md §6's producer_status enum.
type ProducerStatus int

const (
	StatusIdle ProducerStatus = iota
	StatusFetching
	StatusDecoding
	StatusQuantizing
	StatusError
)

func (s ProducerStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusDecoding:
		return "decoding"
	case StatusQuantizing:
		return "quantizing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// BpmMode mirrors internal/audio.BpmMode for the snapshot's public surface,
// so the UI domain never needs to import internal/audio directly.
type BpmMode int

const (
	BpmModeAuto BpmMode = iota
	BpmModeFixed
)

func (m BpmMode) String() string {
	if m == BpmModeFixed {
		return "fixed"
	}
	return "auto"
}

// Station is the subset of catalog data the snapshot needs to name
// "what's currently playing" without pulling in the full catalog.Station.
type Station struct {
	Name    string
	Country string
}

// Snapshot is the read-only state spec.md §6 says the UI consumes: what's
// playing, what the producer is doing, and the audio callback's diagnostic
// underrun count.
type Snapshot struct {
	Station         *Station
	BPM             float64
	HasBPM          bool
	Bars            int
	BpmMode         BpmMode
	ProducerStatus  ProducerStatus
	StatusMessage   string
	QueueHasPending bool
	UnderrunCount   uint64
}

// Cell is the versioned broadcast cell: one writer side and many reader
// sides (UI domain). In this implementation the Producer is the only
// writer, calling Update from a single goroutine at a time; the Engine
// does not write to the cell, and its underrun count is read from
// Engine.Underruns by the status printer instead. Store/Load move
// a single pointer, so a reader always observes either the previous or the
// current snapshot in full, never a partial write.
type Cell struct {
	value atomic.Pointer[Snapshot]
}

// NewCell returns a Cell seeded with an idle, empty snapshot.
func NewCell() *Cell {
	c := &Cell{}
	c.value.Store(&Snapshot{ProducerStatus: StatusIdle, Bars: 2})
	return c
}

// Store publishes a new snapshot. The previous snapshot, if still held by
// a reader, remains valid to read; this is a plain pointer swap.
func (c *Cell) Store(s Snapshot) {
	c.value.Store(&s)
}

// Load returns the latest published snapshot.
func (c *Cell) Load() Snapshot {
	return *c.value.Load()
}

// Update reads the latest snapshot, applies fn, and publishes the result.
// It is not atomic with respect to concurrent Update calls; the Producer
// is its only caller in this implementation and never calls it
// concurrently.
func (c *Cell) Update(fn func(Snapshot) Snapshot) {
	c.Store(fn(c.Load()))
}
