// Package viewsync discards responses that a newer request for the same view region
// has superseded.
package viewsync

import (
	"sync"
	"time"
)

type key struct {
	client string
	region string
}

type slot struct {
	seq  uint64
	used time.Time
}

// Tracker hands out tickets per (client, region). Only the latest ticket is current.
type Tracker struct {
	mu    sync.Mutex
	slots map[key]slot
	next  uint64 // global so a swept slot never reissues an old sequence
	now   func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{slots: make(map[key]slot), now: time.Now}
}

// Ticket identifies one request for a region.
type Ticket struct {
	t   *Tracker
	k   key
	seq uint64
}

// Begin records a new request for region and supersedes every earlier ticket for it.
func (t *Tracker) Begin(clientID, region string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{client: clientID, region: region}
	t.next++
	s := slot{seq: t.next, used: t.now()}
	t.slots[k] = s
	return Ticket{t: t, k: k, seq: s.seq}
}

// Current reports whether no newer ticket has been issued for the same client and region.
// A slot dropped by Forget or Sweep has no newer ticket, so its last ticket stays current.
func (tk Ticket) Current() bool {
	if tk.t == nil {
		return true
	}
	tk.t.mu.Lock()
	defer tk.t.mu.Unlock()
	s, ok := tk.t.slots[tk.k]
	return !ok || s.seq == tk.seq
}

// Forget drops every region tracked for clientID.
func (t *Tracker) Forget(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.slots {
		if k.client == clientID {
			delete(t.slots, k)
		}
	}
}

// Sweep drops regions untouched since before cutoff and returns how many were removed.
func (t *Tracker) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, s := range t.slots {
		if s.used.Before(cutoff) {
			delete(t.slots, k)
			n++
		}
	}
	return n
}
