package utils

import (
	"sync"
	"time"
)

// RateLimiter реализует ограничение частоты запросов
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limit   int
	window  time.Duration
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
	}
}

// Allow проверяет, разрешен ли запрос
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.currentWindow(key, time.Now())
	if w.count >= rl.limit {
		return false
	}

	w.count++
	return true
}

// Reset сбрасывает счетчик для ключа
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, key)
}

// GetRemaining возвращает количество оставшихся запросов
func (rl *RateLimiter) GetRemaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.currentWindow(key, time.Now())
	remaining := rl.limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetResetTime возвращает время до сброса лимита
func (rl *RateLimiter) GetResetTime(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.currentWindow(key, time.Now())
	return w.start.Add(rl.window)
}

// currentWindow возвращает актуальное окно для ключа, открывая новое при истечении
func (rl *RateLimiter) currentWindow(key string, now time.Time) *rateWindow {
	w, exists := rl.windows[key]
	if !exists || now.Sub(w.start) >= rl.window {
		w = &rateWindow{start: now}
		rl.windows[key] = w
	}
	return w
}
