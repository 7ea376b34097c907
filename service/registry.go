package service

import (
	"fmt"
	"sync"
	"time"
)

// RegistryEntry is the registry's view of one live or recently finished
// session. The registry holds a lookup reference only; the controller
// remains the sole writer of the session itself.
type RegistryEntry struct {
	Session          *StreamSession
	BackgroundActive bool
	Done             bool
	FinalContent     string
	ExpiresAt        time.Time
}

// SessionRegistry is the process-wide keyed store that lets a consumer
// reattach to a session after going away: lookup returns exactly the
// partial content accumulated so far, no loss and no duplication. Both the
// network-consuming path and a reattaching consumer path touch it
// concurrently; every mutation is atomic per key.
type SessionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
	ttl     time.Duration
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionRegistry{
		entries: make(map[string]*RegistryEntry),
		ttl:     ttl,
	}
}

// Create registers a session under a key. Creating over a live key is an
// error; a finished or expired entry is replaced.
func (r *SessionRegistry) Create(key string, session *StreamSession) (*RegistryEntry, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[key]; ok && !existing.Done && time.Now().Before(existing.ExpiresAt) {
		return nil, fmt.Errorf("session already registered for key %s", key)
	}
	entry := &RegistryEntry{
		Session:   session,
		ExpiresAt: time.Now().Add(r.ttl),
	}
	r.entries[key] = entry
	return entry, nil
}

// Get returns the entry for a key, refreshing its TTL. The returned entry
// is a copy; use the session handle inside it for live state.
func (r *SessionRegistry) Get(key string) (RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return RegistryEntry{}, false
	}
	entry.ExpiresAt = time.Now().Add(r.ttl)
	return *entry, true
}

// MarkBackgroundActive flags a session as still streaming while no
// consumer is attached.
func (r *SessionRegistry) MarkBackgroundActive(key string) bool {
	return r.setBackground(key, true)
}

// MarkForegroundActive flags a session as having a consumer attached.
func (r *SessionRegistry) MarkForegroundActive(key string) bool {
	return r.setBackground(key, false)
}

func (r *SessionRegistry) setBackground(key string, background bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false
	}
	entry.BackgroundActive = background
	return true
}

// Complete records a session's final content. The entry stays resolvable
// until the TTL sweep removes it, so a late-returning consumer still gets
// the finished text.
func (r *SessionRegistry) Complete(key string, finalContent string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false
	}
	entry.Done = true
	entry.BackgroundActive = false
	entry.FinalContent = finalContent
	entry.ExpiresAt = time.Now().Add(r.ttl)
	return true
}

// SweepExpired removes entries past their TTL and returns how many were
// dropped. Run it periodically from a housekeeping goroutine.
func (r *SessionRegistry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range r.entries {
		if now.After(entry.ExpiresAt) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
