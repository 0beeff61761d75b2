package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatBalance(t *testing.T) {
	require.Equal(t, "1 coin", FormatBalance(1))
	require.Equal(t, "0 coins", FormatBalance(0))
	require.Equal(t, "2 350 coins", FormatBalance(2350))
	require.Equal(t, "1 000 000 coins", FormatBalance(1_000_000))
	require.Equal(t, "+30 coins", FormatSignedAmount(30))
	require.Equal(t, "-5 coins", FormatSignedAmount(-5))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC) // 01:30 следующего дня по MSK

	day := StartOfDay(ts, loc)
	require.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, loc), day)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(7)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Equal(t, 0, km.Len())
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not wait")
	}
}

func TestPluralizeDays(t *testing.T) {
	for n, want := range map[int]string{1: "день", 2: "дня", 4: "дня", 5: "дней", 11: "дней", 12: "дней", 21: "день", 22: "дня", 111: "дней"} {
		require.Equal(t, want, PluralizeDays(n), "n=%d", n)
	}
}
