package lastreq

import (
	"testing"
	"time"

	"github.com/perch-io/crossgate/internal/gate/common/clock"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

func newTestSuppressor(window time.Duration) (*Suppressor, *clock.MockClock) {
	clk := &clock.MockClock{CurrentTime: time.Unix(1700000000, 0)}
	return New(clk, window), clk
}

func TestSuppressor_HitWithinWindow(t *testing.T) {
	s, clk := newTestSuppressor(DefaultWindow)
	want := domain.Denied(domain.ReasonDefaultDeny)
	s.Store("http://a/", "http://b/", want)

	clk.Advance(50 * time.Millisecond)
	got, ok := s.Check("http://a/", "http://b/")
	if !ok {
		t.Fatalf("expected hit within window")
	}
	if got != want {
		t.Fatalf("decision changed: %+v vs %+v", got, want)
	}
}

func TestSuppressor_MissAfterWindow(t *testing.T) {
	s, clk := newTestSuppressor(DefaultWindow)
	s.Store("http://a/", "http://b/", domain.Allowed(domain.ReasonSameHost))

	clk.Advance(DefaultWindow)
	if _, ok := s.Check("http://a/", "http://b/"); ok {
		t.Fatalf("expected miss at exactly the window boundary")
	}
}

func TestSuppressor_MissOnDifferentPair(t *testing.T) {
	s, _ := newTestSuppressor(DefaultWindow)
	s.Store("http://a/", "http://b/", domain.Allowed(domain.ReasonSameHost))

	if _, ok := s.Check("http://a/", "http://c/"); ok {
		t.Fatalf("different destination must miss")
	}
	if _, ok := s.Check("http://c/", "http://b/"); ok {
		t.Fatalf("different origin must miss")
	}
}

func TestSuppressor_StoreOverwrites(t *testing.T) {
	s, _ := newTestSuppressor(DefaultWindow)
	s.Store("http://a/", "http://b/", domain.Denied(domain.ReasonDefaultDeny))
	s.Store("http://c/", "http://d/", domain.Allowed(domain.ReasonSameHost))

	if _, ok := s.Check("http://a/", "http://b/"); ok {
		t.Fatalf("slot must hold only the latest pair")
	}
	if d, ok := s.Check("http://c/", "http://d/"); !ok || !d.Allow {
		t.Fatalf("latest pair missing: %+v %v", d, ok)
	}
}

func TestSuppressor_EmptyAndReset(t *testing.T) {
	s, _ := newTestSuppressor(0) // falls back to DefaultWindow
	if _, ok := s.Check("http://a/", "http://b/"); ok {
		t.Fatalf("empty slot must miss")
	}
	s.Store("http://a/", "http://b/", domain.Allowed(domain.ReasonSameHost))
	s.Reset()
	if _, ok := s.Check("http://a/", "http://b/"); ok {
		t.Fatalf("reset slot must miss")
	}
}
