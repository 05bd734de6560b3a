package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestKeyedRateLimiter_BurstThenDeny(t *testing.T) {
	krl := New(1, 3, 0)
	defer krl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, krl.Allow("ip-1"), "request %d within burst", i)
	}
	assert.False(t, krl.Allow("ip-1"))
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	krl := New(1, 1, 0)
	defer krl.Stop()

	assert.True(t, krl.Allow("a"))
	assert.False(t, krl.Allow("a"))
	assert.True(t, krl.Allow("b"))
	assert.Equal(t, 2, krl.Len())
}

func TestKeyedRateLimiter_SweepEvictsIdleKeys(t *testing.T) {
	krl := New(1, 1, time.Minute)
	defer krl.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	krl.now = func() time.Time { return now }

	krl.Allow("old")
	now = now.Add(2 * time.Minute)
	krl.Allow("fresh")

	krl.Sweep()
	assert.Equal(t, 1, krl.Len())

	// An evicted key starts with a full bucket again.
	assert.True(t, krl.Allow("old"))
}

func TestKeyedRateLimiter_ConcurrentAllow(t *testing.T) {
	krl := New(1000, 1000, 0)
	defer krl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			krl.Allow("shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, krl.Len())
}

func TestKeyedRateLimiter_StopEndsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	krl := New(1, 1, time.Millisecond)
	krl.Stop()
	krl.Stop()
}
