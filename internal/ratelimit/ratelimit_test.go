package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BurstThenLimited(t *testing.T) {
	l := NewInMemoryLimiter(1, time.Hour, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("conn-1"), "attempt %d", i)
	}
	assert.False(t, l.Allow("conn-1"))
	assert.True(t, l.Allow("conn-2"), "keys have separate buckets")
}

func TestForget(t *testing.T) {
	l := NewInMemoryLimiter(1, time.Hour, 1)
	assert.True(t, l.Allow("conn-1"))
	assert.False(t, l.Allow("conn-1"))

	l.Forget("conn-1")
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.Allow("conn-1"))
}

func TestNoRateMeansUnlimited(t *testing.T) {
	l := NewInMemoryLimiter(0, time.Second, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}
}
