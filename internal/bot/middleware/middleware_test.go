package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow(1))
	require.True(t, rl.Allow(1))
	require.False(t, rl.Allow(1))
	require.True(t, rl.Allow(2))

	now = now.Add(61 * time.Second)
	require.True(t, rl.Allow(1))

	now = now.Add(2 * time.Minute)
	rl.sweep()
	rl.mu.Lock()
	require.Empty(t, rl.requests)
	rl.mu.Unlock()
}

func TestRecoverFromPanic(t *testing.T) {
	require.NotPanics(t, func() {
		defer RecoverFromPanic("test")
		panic("boom")
	})
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "привет", Truncate("привет", 10))
	require.Equal(t, "при...", Truncate("привет", 3))
}
