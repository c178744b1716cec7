package alerting

import (
	"sort"
	"sync"
	"time"

	"airwatch/internal/aqi"
)

// CooldownEntry records alerts sent for one (node, tier) pair. Entries live
// for the lifetime of the process.
type CooldownEntry struct {
	NodeID      string    `json:"node_id"`
	Tier        aqi.Tier  `json:"level"`
	FirstSentAt time.Time `json:"first_sent_at"`
	LastSentAt  time.Time `json:"last_sent_at"`
	SendCount   int       `json:"send_count"`
}

type cooldownKey struct {
	nodeID string
	tier   aqi.Tier
}

// CooldownTracker deduplicates alerts per (node, tier) within a window and
// guards against two batches for the same key running at once.
type CooldownTracker struct {
	window time.Duration

	mu       sync.Mutex
	entries  map[cooldownKey]*CooldownEntry
	inFlight map[cooldownKey]struct{}
}

// NewCooldownTracker creates a tracker with the given suppression window.
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window:   window,
		entries:  make(map[cooldownKey]*CooldownEntry),
		inFlight: make(map[cooldownKey]struct{}),
	}
}

// Acquire claims the key for a dispatch at now. It returns false when the
// last send is younger than the window or another batch holds the key. A
// successful Acquire must be paired with Release.
func (c *CooldownTracker) Acquire(nodeID string, tier aqi.Tier, now time.Time) bool {
	k := cooldownKey{nodeID: nodeID, tier: tier}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[k]; busy {
		return false
	}
	if e, ok := c.entries[k]; ok && now.Sub(e.LastSentAt) < c.window {
		return false
	}
	c.inFlight[k] = struct{}{}
	return true
}

// Release frees the key. When sent is true the entry is created or updated
// with LastSentAt = now.
func (c *CooldownTracker) Release(nodeID string, tier aqi.Tier, now time.Time, sent bool) {
	k := cooldownKey{nodeID: nodeID, tier: tier}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, k)
	if !sent {
		return
	}
	e, ok := c.entries[k]
	if !ok {
		e = &CooldownEntry{NodeID: nodeID, Tier: tier, FirstSentAt: now}
		c.entries[k] = e
	}
	e.LastSentAt = now
	e.SendCount++
}

// Lookup returns a copy of the entry for (nodeID, tier).
func (c *CooldownTracker) Lookup(nodeID string, tier aqi.Tier) (CooldownEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cooldownKey{nodeID: nodeID, tier: tier}]
	if !ok {
		return CooldownEntry{}, false
	}
	return *e, true
}

// History returns copies of all entries for nodeID ordered by tier severity.
func (c *CooldownTracker) History(nodeID string) []CooldownEntry {
	c.mu.Lock()
	out := make([]CooldownEntry, 0, len(aqi.AllTiers))
	for k, e := range c.entries {
		if k.nodeID == nodeID {
			out = append(out, *e)
		}
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Tier.Severity() < out[j].Tier.Severity()
	})
	return out
}
