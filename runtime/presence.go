package runtime

import (
	"sync"

	"chat-relay/domain"

	"github.com/samber/lo"
)

// Presence maps each online identity to its single live connection.
// Reconnecting the same identity replaces the previous connection reference;
// the stale connection is cleaned up when its own disconnect arrives.
type Presence struct {
	mu     sync.RWMutex
	online map[string]domain.ConnID
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]domain.ConnID)}
}

// MarkOnline inserts or replaces the presence entry for name. Idempotent per
// identity.
func (p *Presence) MarkOnline(name string, conn domain.ConnID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[name] = conn
}

// MarkOffline removes the identity owning conn and returns its name. A
// connection that was never registered (e.g. one refused at connect time)
// reports false.
func (p *Presence) MarkOffline(conn domain.ConnID) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, c := range p.online {
		if c == conn {
			delete(p.online, name)
			return name, true
		}
	}
	return "", false
}

// Lookup returns the identity currently owning conn. The scan is linear,
// which is fine at this working-set size.
func (p *Presence) Lookup(conn domain.ConnID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, c := range p.online {
		if c == conn {
			return name, true
		}
	}
	return "", false
}

// Resolve returns the connection of an online identity.
func (p *Presence) Resolve(name string) (domain.ConnID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.online[name]
	return conn, ok
}

// Snapshot returns a point-in-time view of every online identity name.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return lo.Keys(p.online)
}
