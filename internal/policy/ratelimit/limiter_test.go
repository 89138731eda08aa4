package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitPacesRequests(t *testing.T) {
	t.Parallel()
	l := New(Config{RequestsPerSecond: 100, Burst: 1})

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	// Burst of one: three of the four calls wait ~10ms each.
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitUnlimitedByDefault(t *testing.T) {
	t.Parallel()
	l := New(Config{})

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()
	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx))
}

func TestNilLimiterNeverBlocks(t *testing.T) {
	t.Parallel()
	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
}
