// Package ledger records every rule-relevant decision in two mutually
// exclusive sets, allowed and rejected, keyed by full origin URI, then
// destination identifier, then full destination URI. The sets back the
// host UI ("which requests did this page trigger") and the transitive
// "does this origin have blocked requests" query.
package ledger

import (
	"sync"

	"github.com/perch-io/crossgate/internal/gate/common/log"
)

// Bucket groups the destination URIs that share one destination
// identifier, with a reference count. Count is kept separate from the
// member set so a destination URI can never collide with bookkeeping.
type Bucket struct {
	Count   int
	Members map[string]bool
}

// requestSet is originURI -> destIdentifier -> bucket.
type requestSet map[string]map[string]*Bucket

// Snapshot is a deep copy of one set, safe for the host UI to walk.
type Snapshot map[string]map[string][]string

// IdentifyFunc derives a destination identifier at the active
// identification level.
type IdentifyFunc func(uri string) string

// Ledger holds the allowed and rejected request sets behind one lock.
type Ledger struct {
	mu       sync.RWMutex
	allowed  requestSet
	rejected requestSet
	identify IdentifyFunc
	logger   log.Logger
}

// New constructs an empty Ledger.
func New(identify IdentifyFunc, logger log.Logger) *Ledger {
	return &Ledger{
		allowed:  requestSet{},
		rejected: requestSet{},
		identify: identify,
		logger:   logger,
	}
}

// RecordAllowed records (origin, dest) as allowed, removing any rejected
// entry for the exact pair.
//
// Unless isRedirectInsert is set, previously recorded requests that
// originated from dest are wholesale-cleared from both sets: an allowed
// load of dest means the page there is being (re)loaded, and its new
// sub-requests supersede everything recorded for the old load. Redirect
// chain merges pass isRedirectInsert=true precisely to skip that reset.
func (l *Ledger) RecordAllowed(originURI, destURI string, isRedirectInsert bool) {
	destID := l.identify(destURI)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(l.rejected, originURI, destID, destURI)
	if !isRedirectInsert {
		delete(l.allowed, destURI)
		delete(l.rejected, destURI)
	}
	l.insertLocked(l.allowed, originURI, destID, destURI)
}

// RecordRejected records (origin, dest) as rejected, removing any allowed
// entry for the exact pair.
func (l *Ledger) RecordRejected(originURI, destURI string) {
	destID := l.identify(destURI)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(l.allowed, originURI, destID, destURI)
	l.insertLocked(l.rejected, originURI, destID, destURI)
}

func (l *Ledger) insertLocked(set requestSet, originURI, destID, destURI string) {
	buckets := set[originURI]
	if buckets == nil {
		buckets = map[string]*Bucket{}
		set[originURI] = buckets
	}
	b := buckets[destID]
	if b == nil {
		b = &Bucket{Members: map[string]bool{}}
		buckets[destID] = b
	}
	if !b.Members[destURI] {
		b.Members[destURI] = true
		b.Count++
	}
}

func (l *Ledger) removeLocked(set requestSet, originURI, destID, destURI string) {
	buckets := set[originURI]
	if buckets == nil {
		return
	}
	b := buckets[destID]
	if b == nil || !b.Members[destURI] {
		return
	}
	delete(b.Members, destURI)
	b.Count--
	if b.Count < 0 {
		// Invariant violation; clamp and keep serving requests.
		l.logger.Error(map[string]any{
			"origin":  originURI,
			"dest_id": destID,
			"count":   b.Count,
		}, "ledger bucket count went negative; clamping to zero")
		b.Count = 0
	}
	if b.Count == 0 {
		delete(buckets, destID)
	}
	if len(buckets) == 0 {
		delete(set, originURI)
	}
}

// OriginHasRejectedRequests reports whether the origin has any rejected
// request, directly or transitively through the destinations it was
// allowed to load. The visited set bounds the walk, so redirect- or
// frame-shaped cycles in the ledger cannot hang it.
func (l *Ledger) OriginHasRejectedRequests(originURI string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hasRejectedLocked(originURI, map[string]bool{})
}

func (l *Ledger) hasRejectedLocked(originURI string, visited map[string]bool) bool {
	if visited[originURI] {
		return false
	}
	visited[originURI] = true

	for _, b := range l.rejected[originURI] {
		if b.Count > 0 {
			return true
		}
	}
	for _, b := range l.allowed[originURI] {
		for destURI := range b.Members {
			if l.hasRejectedLocked(destURI, visited) {
				return true
			}
		}
	}
	return false
}

// Clear drops both sets. Called when the identification level changes,
// since recorded destination identifiers are keyed at the old level.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.allowed = requestSet{}
	l.rejected = requestSet{}
	l.mu.Unlock()
}

// AllowedSnapshot returns a deep copy of the allowed set.
func (l *Ledger) AllowedSnapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return snapshotLocked(l.allowed)
}

// RejectedSnapshot returns a deep copy of the rejected set.
func (l *Ledger) RejectedSnapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return snapshotLocked(l.rejected)
}

func snapshotLocked(set requestSet) Snapshot {
	out := Snapshot{}
	for origin, buckets := range set {
		bs := map[string][]string{}
		for destID, b := range buckets {
			members := make([]string, 0, len(b.Members))
			for destURI := range b.Members {
				members = append(members, destURI)
			}
			bs[destID] = members
		}
		out[origin] = bs
	}
	return out
}
