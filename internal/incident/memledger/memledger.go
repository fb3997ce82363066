// Package memledger provides an in-memory implementation of incident.Ledger.
// State is lost on restart, so handled incidents may be re-acknowledged after
// a crash; suitable for dev and for deployments that accept at-least-once
// delivery across restarts.
package memledger

import (
	"context"
	"sync"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

// Ledger holds handled-incident entries in memory.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*incident.Entry // incident ID -> entry
	order   []string                   // insertion order, oldest first
}

// New initializes an empty in-memory Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*incident.Entry)}
}

// Has reports whether the identifier has been handled.
func (l *Ledger) Has(_ context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[id]
	return ok, nil
}

// MarkHandled stores a copy of the entry. Marking an already-present
// identifier is a no-op; the first completion wins.
func (l *Ledger) MarkHandled(_ context.Context, e *incident.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[e.ID]; ok {
		return nil
	}
	cp := *e
	l.entries[e.ID] = &cp
	l.order = append(l.order, e.ID)
	return nil
}

// Get retrieves an entry by incident identifier. Returns a copy.
func (l *Ledger) Get(_ context.Context, id string) (*incident.Entry, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// Recent returns up to limit entries, most recently handled first.
func (l *Ledger) Recent(_ context.Context, limit int) ([]*incident.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*incident.Entry, 0, min(limit, len(l.order)))
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *l.entries[l.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
