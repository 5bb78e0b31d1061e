package auth

import (
	"strings"
	"sync"
	"time"

	"inkpress/internal/utils"
)

// AttemptLimiter counts failed sign-ins per key inside a sliding window.
type AttemptLimiter struct {
	mu       sync.Mutex
	failures *utils.TTLCache[int]
	max      int
	window   time.Duration
}

func NewAttemptLimiter(max int, window time.Duration) (*AttemptLimiter, error) {
	c, err := utils.NewTTLCache[int](4096)
	if err != nil {
		return nil, err
	}
	return &AttemptLimiter{failures: c, max: max, window: window}, nil
}

// Allow reports whether another attempt for key may proceed.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, _ := l.failures.Get(normalizeKey(key))
	return n < l.max
}

// Fail records a failed attempt. Every failure restarts the window.
func (l *AttemptLimiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := normalizeKey(key)
	n, _ := l.failures.Get(k)
	l.failures.Set(k, n+1, l.window)
}

func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures.Delete(normalizeKey(key))
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
