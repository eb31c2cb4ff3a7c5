package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(secret string, ttl time.Duration) (*Gate, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	g := NewGate(42, secret, ttl)
	g.SetClock(clock.Now)
	return g, clock
}

func TestAuthorizeWithoutSecret(t *testing.T) {
	g, _ := newTestGate("", 0)

	assert.False(t, g.SecretConfigured())
	assert.Equal(t, Allowed, g.Authorize(42, "deploy"))
	assert.Equal(t, Allowed, g.Authorize(42, ""))
	assert.Equal(t, Denied, g.Authorize(7, "deploy"))
	assert.Equal(t, Denied, g.Authorize(7, "help"))
	assert.False(t, g.Unlock(42, ""))
}

func TestAuthorizeLockedAllowList(t *testing.T) {
	g, _ := newTestGate("1234", 0)

	for _, cmd := range []string{"start", "help", "id", "pin"} {
		assert.Equal(t, Allowed, g.Authorize(42, cmd), cmd)
	}
	for _, cmd := range []string{"status", "diff", "deploy", "reset", ""} {
		assert.Equal(t, Locked, g.Authorize(42, cmd), cmd)
	}
}

func TestUnlockLifecycle(t *testing.T) {
	g, clock := newTestGate("1234", time.Hour)

	assert.Equal(t, Locked, g.Authorize(42, "deploy"))

	assert.False(t, g.Unlock(42, "0000"))
	assert.False(t, g.Unlock(7, "1234"))
	assert.Equal(t, Locked, g.Authorize(42, "deploy"))

	assert.True(t, g.Unlock(42, "1234"))
	assert.Equal(t, clock.t.Add(time.Hour), g.UnlockedUntil())
	assert.Equal(t, Allowed, g.Authorize(42, "deploy"))
	assert.Equal(t, Denied, g.Authorize(7, "deploy"))

	clock.Advance(59 * time.Minute)
	assert.Equal(t, Allowed, g.Authorize(42, "deploy"))

	clock.Advance(time.Minute)
	assert.Equal(t, Locked, g.Authorize(42, "deploy"))
}

func TestDefaultTTLAndLock(t *testing.T) {
	g, clock := newTestGate("1234", 0)
	assert.Equal(t, DefaultTTL, g.TTL())

	assert.True(t, g.Unlock(42, "1234"))
	clock.Advance(11 * time.Hour)
	assert.Equal(t, Allowed, g.Authorize(42, "status"))

	g.Lock()
	assert.Equal(t, Locked, g.Authorize(42, "status"))
	assert.True(t, g.UnlockedUntil().IsZero())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "locked", Locked.String())
}
