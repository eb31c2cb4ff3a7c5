// Package session decides which chat commands a sender may run: one allowed
// identity, optionally behind a shared PIN that unlocks gated commands for a
// limited time.
package session

import (
	"crypto/subtle"
	"sync"
	"time"

	"botcursor/internal/logging"
)

// DefaultTTL is how long a successful unlock lasts.
const DefaultTTL = 12 * time.Hour

// Decision is the result of an authorization check.
type Decision int

const (
	// Allowed means the command may run.
	Allowed Decision = iota
	// Denied means the sender is not the allowed identity.
	Denied
	// Locked means the sender is allowed but must unlock with the PIN first.
	Locked
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// unlockedCommands may run while the gate is locked.
var unlockedCommands = map[string]bool{
	"start": true,
	"help":  true,
	"id":    true,
	"pin":   true,
}

// Gate holds the unlock state for one allowed identity. It is owned by the
// router; there is no package-level state.
type Gate struct {
	allowedID int64
	secret    string
	ttl       time.Duration
	now       func() time.Time

	mu           sync.Mutex
	unlockExpiry time.Time
}

// NewGate creates a gate. An empty secret disables the PIN; ttl <= 0 uses
// DefaultTTL.
func NewGate(allowedID int64, secret string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		allowedID: allowedID,
		secret:    secret,
		ttl:       ttl,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (g *Gate) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SecretConfigured reports whether a PIN is required.
func (g *Gate) SecretConfigured() bool { return g.secret != "" }

// TTL returns the unlock window.
func (g *Gate) TTL() time.Duration { return g.ttl }

// Authorize checks identity and, for gated commands, the unlock window.
// command is the bare command name ("status", "deploy"); free text uses "".
func (g *Gate) Authorize(identity int64, command string) Decision {
	if identity != g.allowedID {
		logging.SessionWarn("Unauthorized access attempt from %d (command=%q)", identity, command)
		return Denied
	}
	if g.secret == "" || unlockedCommands[command] {
		return Allowed
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.now().Before(g.unlockExpiry) {
		return Allowed
	}
	return Locked
}

// Unlock verifies code for identity. On success the gate stays open for the
// TTL from now.
func (g *Gate) Unlock(identity int64, code string) bool {
	if identity != g.allowedID || g.secret == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(g.secret)) != 1 {
		logging.SessionWarn("Wrong PIN from %d", identity)
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlockExpiry = g.now().Add(g.ttl)
	logging.Session("Unlocked until %s", g.unlockExpiry.Format(time.RFC3339))
	return true
}

// UnlockedUntil returns the current expiry; the zero time if never unlocked.
func (g *Gate) UnlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlockExpiry
}

// Lock ends the unlock window immediately.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlockExpiry = time.Time{}
}
