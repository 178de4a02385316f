package model

import (
	"log/slog"
	"sync"
	"time"
)

// LogLimiter emits at most one warning per key per interval.
// Evaluation hot paths use it so a broken definition does not flood the log.
type LogLimiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewLogLimiter creates a limiter. interval <= 0 logs every call.
func NewLogLimiter(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Warn logs msg under key unless the key was logged within the interval.
// Returns true when the message was written.
func (l *LogLimiter) Warn(key, msg string, args ...any) bool {
	if !l.allow(key) {
		return false
	}
	slog.Warn(msg, args...)
	return true
}

func (l *LogLimiter) allow(key string) bool {
	if l == nil || l.interval <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.last[key]; ok && now.Sub(t) < l.interval {
		return false
	}
	l.last[key] = now

	// Drop stale keys once the map grows; keys are definition ids so it stays small.
	if len(l.last) > 1024 {
		for k, t := range l.last {
			if now.Sub(t) >= l.interval {
				delete(l.last, k)
			}
		}
	}
	return true
}
