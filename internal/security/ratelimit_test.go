package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int) *Limiter {
	l := &Limiter{
		cfg:     LimiterConfig{PerMinute: limit},
		windows: make(map[string]*rateWindow),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	return l
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := newTestLimiter(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		assert.True(t, l.allowAt("u1", base.Add(time.Duration(i)*time.Millisecond)),
			"request %d should be allowed", i+1)
	}
	assert.False(t, l.allowAt("u1", base.Add(time.Second)), "request 101 should be denied")
}

func TestLimiterBlockLastsFullMinute(t *testing.T) {
	l := newTestLimiter(2)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allowAt("u1", base))
	assert.True(t, l.allowAt("u1", base.Add(time.Second)))

	// Third request trips the block at base+2s.
	assert.False(t, l.allowAt("u1", base.Add(2*time.Second)))

	// Still blocked even after the original stamps have aged out.
	assert.False(t, l.allowAt("u1", base.Add(61*time.Second)))

	// Block expires one minute after it was imposed.
	assert.True(t, l.allowAt("u1", base.Add(62*time.Second+time.Millisecond)))
}

func TestLimiterDenialsDoNotExtendBlock(t *testing.T) {
	l := newTestLimiter(1)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allowAt("u1", base))
	assert.False(t, l.allowAt("u1", base.Add(time.Second))) // blocked until +61s
	assert.False(t, l.allowAt("u1", base.Add(30*time.Second)))
	assert.True(t, l.allowAt("u1", base.Add(62*time.Second)))
}

func TestLimiterSlidingWindow(t *testing.T) {
	l := newTestLimiter(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allowAt("u1", base))
	assert.True(t, l.allowAt("u1", base.Add(10*time.Second)))
	assert.True(t, l.allowAt("u1", base.Add(20*time.Second)))

	// At +70s the first stamp has slid out, so there is room again.
	assert.True(t, l.allowAt("u1", base.Add(70*time.Second)))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(1)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allowAt("u1", base))
	assert.False(t, l.allowAt("u1", base.Add(time.Second)))
	assert.True(t, l.allowAt("u2", base.Add(time.Second)))
}

func TestLimiterForget(t *testing.T) {
	l := newTestLimiter(1)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allowAt("conn:abc", base))
	assert.False(t, l.allowAt("conn:abc", base.Add(time.Second)))

	l.Forget("conn:abc")
	assert.True(t, l.allowAt("conn:abc", base.Add(2*time.Second)))
}
