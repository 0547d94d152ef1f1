// Package lastreq is the duplicate-call suppressor: a single-slot cache
// of the most recent decision. Hosts tend to ask about the same request
// several times in quick succession (content policy, then the HTTP
// observer, then again for the same document); within a short window the
// engine answers from the slot instead of re-matching and re-recording.
package lastreq

import (
	"sync"
	"time"

	"github.com/perch-io/crossgate/internal/gate/common/clock"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

// DefaultWindow is how long a stored decision stays answerable.
const DefaultWindow = 200 * time.Millisecond

// Suppressor holds the last decision. The slot is checked lazily on the
// next call; no eviction goroutine exists or is needed.
type Suppressor struct {
	mu     sync.Mutex
	clk    clock.Clock
	window time.Duration

	valid    bool
	origin   string
	dest     string
	at       time.Time
	decision domain.Decision
}

// New constructs a Suppressor. A window <= 0 falls back to DefaultWindow.
func New(clk clock.Clock, window time.Duration) *Suppressor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Suppressor{clk: clk, window: window}
}

// Check returns the stored decision when (origin, dest) matches the slot
// and the slot is younger than the window.
func (s *Suppressor) Check(origin, dest string) (domain.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid || s.origin != origin || s.dest != dest {
		return domain.Decision{}, false
	}
	if s.clk.Now().Sub(s.at) >= s.window {
		return domain.Decision{}, false
	}
	return s.decision, true
}

// Store overwrites the slot unconditionally.
func (s *Suppressor) Store(origin, dest string, d domain.Decision) {
	s.mu.Lock()
	s.valid = true
	s.origin = origin
	s.dest = dest
	s.at = s.clk.Now()
	s.decision = d
	s.mu.Unlock()
}

// Reset invalidates the slot.
func (s *Suppressor) Reset() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}
