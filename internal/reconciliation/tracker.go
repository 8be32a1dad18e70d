package reconciliation

import (
	"context"
	"sync"
)

// Tracker keeps the active reconciliation generation per agreement. Starting a
// new generation cancels the previous one so a superseded plan stops being
// written to.
type Tracker struct {
	mu   sync.Mutex
	seq  uint64
	runs map[string]*run
}

type run struct {
	gen    uint64
	cancel context.CancelFunc
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*run)}
}

// Begin starts a new generation for agreementID, cancelling any previous one.
// The returned done func releases the generation and must always be called.
func (t *Tracker) Begin(parent context.Context, agreementID string) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if prev, ok := t.runs[agreementID]; ok {
		prev.cancel()
	}
	t.seq++
	gen := t.seq
	t.runs[agreementID] = &run{gen: gen, cancel: cancel}
	t.mu.Unlock()

	done := func() {
		cancel()
		t.mu.Lock()
		defer t.mu.Unlock()
		if r, ok := t.runs[agreementID]; ok && r.gen == gen {
			delete(t.runs, agreementID)
		}
	}
	return ctx, gen, done
}

// Supersede cancels the active generation of agreementID, if any
func (t *Tracker) Supersede(agreementID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[agreementID]
	if !ok {
		return false
	}
	r.cancel()
	delete(t.runs, agreementID)
	return true
}

// Current reports whether gen is still the active generation of agreementID
func (t *Tracker) Current(agreementID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[agreementID]
	return ok && r.gen == gen
}

// Active returns the number of agreements with a pass in flight
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}
