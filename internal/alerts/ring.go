package alerts

import (
	"sync"
	"time"
)

// ring is the in-memory alert record buffer. It answers the cheap half of
// the cooldown check and survives store outages; the durable ledger is
// the cross-restart authority.
type ring struct {
	mu      sync.RWMutex
	records []ringRecord
}

type ringRecord struct {
	eventID string
	userID  string
	sentAt  time.Time
}

// retention bounds how far back the ring answers.
const retention = 24 * time.Hour

func newRing() *ring {
	return &ring{}
}

func (r *ring) record(eventID, userID string, sentAt time.Time) {
	r.mu.Lock()
	r.records = append(r.records, ringRecord{eventID: eventID, userID: userID, sentAt: sentAt})
	r.mu.Unlock()
}

// lastSent returns the newest record for the pair within retention.
func (r *ring) lastSent(eventID, userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().Add(-retention)
	var newest time.Time
	found := false
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.eventID == eventID && rec.userID == userID && rec.sentAt.After(cutoff) {
			if !found || rec.sentAt.After(newest) {
				newest = rec.sentAt
				found = true
			}
		}
	}
	return newest, found
}

// prune drops records older than the retention window.
func (r *ring) prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.sentAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	dropped := len(r.records) - len(kept)
	r.records = kept
	return dropped
}

func (r *ring) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
