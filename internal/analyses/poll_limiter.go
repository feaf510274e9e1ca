package analyses

import (
	"sync"
	"time"
)

const defaultPollWindow = 1 * time.Second

// pollLimiter allows one poll per user and task within the window.
type pollLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = defaultPollWindow
	}
	return &pollLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

// Allow records the hit and reports how long to wait when it came too early.
func (l *pollLimiter) Allow(userID, taskID string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key := userID + "|" + taskID
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit[key]; ok {
		if wait := l.window - now.Sub(last); wait > 0 {
			return false, wait
		}
	}
	l.lastHit[key] = now
	if len(l.lastHit) > 10000 {
		l.evict(now)
	}
	return true, 0
}

func (l *pollLimiter) evict(now time.Time) {
	for k, t := range l.lastHit {
		if now.Sub(t) >= l.window {
			delete(l.lastHit, k)
		}
	}
}
