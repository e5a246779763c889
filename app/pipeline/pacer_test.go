package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatePacer_SpacesWaits(t *testing.T) {
	pacer := NewRatePacer(40 * time.Millisecond)

	start := time.Now()
	for range 3 {
		require.NoError(t, pacer.Wait(context.Background()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestRatePacer_ZeroIntervalDoesNotWait(t *testing.T) {
	pacer := NewRatePacer(0)

	start := time.Now()
	for range 100 {
		require.NoError(t, pacer.Wait(context.Background()))
	}

	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRatePacer_Cancelled(t *testing.T) {
	pacer := NewRatePacer(time.Hour)
	require.NoError(t, pacer.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, pacer.Wait(ctx))
}
