package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	// Первые три запроса проходят
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"))
	}

	// Четвертый упирается в лимит
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.Equal(t, 0, limiter.GetRemaining("10.0.0.1"))

	// Лимиты считаются по ключу независимо
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.GetRemaining("10.0.0.2"))
}

func TestRateLimiterReset(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	limiter.Reset("10.0.0.1")
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 50*time.Millisecond)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	// После истечения окна счетчик открывается заново
	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterGetResetTime(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	limiter.Allow("10.0.0.1")

	reset := limiter.GetResetTime("10.0.0.1")
	assert.True(t, reset.After(time.Now()))
	assert.True(t, reset.Before(time.Now().Add(time.Minute+time.Second)))
}
