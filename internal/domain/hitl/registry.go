package hitl

import (
	"sync"
	"time"
)

// waiterState is the per-entry state machine: none -> waiting -> terminal,
// or none -> resolved-early -> terminal.
type waiterState int

const (
	stateNone waiterState = iota
	stateWaiting
	stateResolvedEarly
)

// outcome is what resultCh delivers to an attached waiter: either a normal
// approve/deny result, or a terminal error (explicit cancellation,
// coordinator shutdown, or a sweep-driven expiry) standing in for one.
// Exactly one of the two fields is meaningful for a given send.
type outcome struct {
	result HITLResult
	err    error
}

// pendingEntry is the registry record backing one ApprovalRequest. Exactly
// one owning Coordinator mutates it, always via the registry's mutex.
type pendingEntry struct {
	request ApprovalRequest
	state   waiterState

	// early holds an outcome — a normal result or a terminal failure —
	// that arrived before a waiter attached.
	early *outcome

	// resultCh delivers an outcome to the attached waiter. Buffered 1 so a
	// send from handleApprovalResponse or a terminal failure never blocks
	// under the registry mutex.
	resultCh chan outcome
}

// registry is the mutex-guarded map of pending approvals. Critical
// sections are kept small; no network I/O or blocking wait runs while the
// mutex is held.
type registry struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*pendingEntry)}
}

// insert publishes a fresh entry, called by createApprovalRequest before
// any webhook dispatch so a race-ahead response can still be parked as an
// early response.
func (r *registry) insert(req ApprovalRequest) *pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &pendingEntry{
		request:  req,
		state:    stateNone,
		resultCh: make(chan outcome, 1),
	}
	r.entries[req.ID] = e
	return e
}

// remove deletes an entry unconditionally (used on webhook dispatch
// failure).
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// get returns the entry for id, or nil.
func (r *registry) get(id string) *pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

// attachWaiter transitions an entry to waiting, or returns its already
// stored early outcome and removes the entry in the same critical section
// (invariant 10: the waiter observes a stored early outcome immediately,
// without a round trip through resultCh).
func (r *registry) attachWaiter(id string) (entry *pendingEntry, early *outcome, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil, false
	}
	if e.state == stateResolvedEarly {
		delete(r.entries, id)
		return e, e.early, true
	}
	e.state = stateWaiting
	return e, nil, true
}

// resolve delivers result to id's entry. If a waiter is attached, the
// entry is removed and result is sent on resultCh (non-blocking thanks to
// the buffer of 1). If no waiter has attached yet, result is stored as an
// early outcome (overwriting any prior one) and the entry is kept.
// Returns false if id is unknown.
func (r *registry) resolve(id string, result HITLResult) (delivered bool, duplicateEarly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false, false
	}
	switch e.state {
	case stateWaiting:
		delete(r.entries, id)
		e.resultCh <- outcome{result: result}
		return true, false
	default: // stateNone or a second resolve racing with attach
		dup := e.early != nil
		e.early = &outcome{result: result}
		e.state = stateResolvedEarly
		return true, dup
	}
}

// fail delivers a terminal error to id's entry in place of a normal
// approve/deny result, for explicit cancellation and coordinator shutdown.
// If a waiter is attached, it is removed and err is sent on resultCh
// (non-blocking thanks to the buffer of 1). If no waiter has attached yet,
// err is stored as an early outcome (the same buffering resolve uses for
// an early normal result) so a subsequently attaching waiter still
// observes the failure instead of finding the entry silently gone.
// Returns false if id is unknown or was already resolved by an earlier
// response or failure — a request that already has a terminal outcome
// cannot be failed a second time.
func (r *registry) fail(id string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	switch e.state {
	case stateWaiting:
		delete(r.entries, id)
		e.resultCh <- outcome{err: err}
	case stateNone:
		e.early = &outcome{err: err}
		e.state = stateResolvedEarly
	default: // stateResolvedEarly: already has a terminal outcome
		return false
	}
	return true
}

// removeIfPresent removes id's entry only if it is still present and
// returns whether it was present, for the timeout and context-cancellation
// paths of WaitForApproval, which must not clobber a concurrently-resolved
// entry.
func (r *registry) removeIfPresent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// expireOlderThan removes entries whose request has expired as of now,
// returning the removed entries so the caller can resolve any waiters
// outside the lock.
func (r *registry) expireOlderThan(now time.Time) []*pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*pendingEntry
	for id, e := range r.entries {
		deadline := e.request.ExpiresAt
		if deadline.IsZero() {
			deadline = e.request.CreatedAt.Add(time.Hour)
		}
		if now.After(deadline) {
			delete(r.entries, id)
			expired = append(expired, e)
		}
	}
	return expired
}

// snapshot returns all pending entries for stats/listing.
func (r *registry) snapshot() []*pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*pendingEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// drainAll removes and returns every entry, for shutdown processing.
func (r *registry) drainAll() []*pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*pendingEntry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, e)
		delete(r.entries, id)
	}
	return out
}
