package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellLoadReflectsLatestStore(t *testing.T) {
	c := NewCell()
	assert.Equal(t, StatusIdle, c.Load().ProducerStatus)

	c.Store(Snapshot{ProducerStatus: StatusFetching, Bars: 4})
	assert.Equal(t, StatusFetching, c.Load().ProducerStatus)
	assert.Equal(t, 4, c.Load().Bars)
}

func TestCellUpdatePreservesOtherFields(t *testing.T) {
	c := NewCell()
	c.Store(Snapshot{ProducerStatus: StatusIdle, Bars: 2, BPM: 120, HasBPM: true})

	c.Update(func(s Snapshot) Snapshot {
		s.ProducerStatus = StatusError
		s.StatusMessage = "decoder exit 1"
		return s
	})

	got := c.Load()
	assert.Equal(t, StatusError, got.ProducerStatus)
	assert.Equal(t, "decoder exit 1", got.StatusMessage)
	assert.Equal(t, 120.0, got.BPM)
}

func TestIntentsSameKindCollapses(t *testing.T) {
	in := NewIntents()
	in.Send(Intent{Kind: IntentSetBars, Bars: 1})
	in.Send(Intent{Kind: IntentSetBars, Bars: 4})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	batch, ok := in.Recv(ctx)
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.Equal(t, 4, batch[0].Bars)
}

func TestIntentsShutdownOrderedLast(t *testing.T) {
	in := NewIntents()
	in.Send(Intent{Kind: IntentShutdown})
	in.Send(Intent{Kind: IntentSkipNow})
	in.Send(Intent{Kind: IntentToggleBpmMode})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	batch, ok := in.Recv(ctx)
	require.True(t, ok)
	require.Len(t, batch, 3)
	assert.Equal(t, IntentShutdown, batch[len(batch)-1].Kind)
}

func TestIntentsRecvBlocksUntilCancel(t *testing.T) {
	in := NewIntents()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := in.Recv(ctx)
	assert.False(t, ok)
}
