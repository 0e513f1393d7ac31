package security

import (
	"sync"
	"time"
)

// rate limiter window span and block duration.
const rateWindowSpan = time.Minute

// LimiterConfig configures the sliding-window rate limiter.
type LimiterConfig struct {
	// PerMinute is the max requests per identity per sliding minute.
	PerMinute int
	// CleanupInterval is how often idle windows are dropped.
	CleanupInterval time.Duration
}

// Limiter enforces a per-identity sliding window. Once an identity
// exceeds the limit it is blocked for a full minute regardless of
// window contents.
type Limiter struct {
	cfg     LimiterConfig
	mu      sync.Mutex
	windows map[string]*rateWindow
	stop    chan struct{}
	now     func() time.Time
}

type rateWindow struct {
	stamps       []time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// NewLimiter creates a limiter and starts its cleanup goroutine.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 100
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		windows: make(map[string]*rateWindow),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go l.cleanup()
	return l
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow records a request for key and reports whether it is within the
// limit. Denials while blocked do not extend the block.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, l.now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &rateWindow{}
		l.windows[key] = w
	}
	w.lastSeen = now

	if now.Before(w.blockedUntil) {
		return false
	}

	// Drop entries older than the window span.
	cutoff := now.Add(-rateWindowSpan)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= l.cfg.PerMinute {
		w.blockedUntil = now.Add(rateWindowSpan)
		return false
	}

	w.stamps = append(w.stamps, now)
	return true
}

// Forget drops the window for a key. Used for lazy cleanup when a
// connection-scoped identity goes away.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanup drops windows idle for two spans and no longer blocked.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			cutoff := now.Add(-2 * rateWindowSpan)
			for key, w := range l.windows {
				if w.lastSeen.Before(cutoff) && now.After(w.blockedUntil) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
