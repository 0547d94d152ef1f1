// Package rules holds the rule store: the allow and deny rule sets, split
// into permanent and session-scoped (temporary) subsets, with the match
// operations the decision engine runs in precedence order.
package rules

import (
	"strings"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/perch-io/crossgate/internal/gate/common/log"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

// filterFPRate is the target false-positive rate for the negative
// pre-filter. False positives only cost an index scan.
const filterFPRate = 0.01

// ruleSet indexes rules by their canonical string, which makes every
// add/remove idempotent.
type ruleSet map[string]domain.Rule

func (s ruleSet) add(r domain.Rule) {
	s[r.String()] = r
}

func (s ruleSet) remove(r domain.Rule) {
	delete(s, r.String())
}

func (s ruleSet) has(r domain.Rule) bool {
	_, ok := s[r.String()]
	return ok
}

// Store is the in-memory rule index. Every permanent mutation flushes the
// serialized document through the persistence provider before returning;
// a flush failure is logged and the in-memory mutation kept, since the
// in-memory state is the source of truth for the running session.
type Store struct {
	mu sync.RWMutex

	allowOrigins ruleSet
	allowDests   ruleSet
	allowPairs   ruleSet

	tempAllowOrigins ruleSet
	tempAllowDests   ruleSet
	tempAllowPairs   ruleSet

	denyOrigins ruleSet
	denyDests   ruleSet
	denyPairs   ruleSet

	// filter answers "no rule host can possibly match" without scanning
	// the sets. Rebuilt on every mutation; nil while no rules exist.
	filter *bitsbloom.BloomFilter

	persist PersistenceProvider
	logger  log.Logger
}

// New constructs an empty Store. The persistence provider may be nil, in
// which case the store is purely in-memory (used by tests and by hosts
// that snapshot through Export instead).
func New(persist PersistenceProvider, logger log.Logger) *Store {
	return &Store{
		allowOrigins:     ruleSet{},
		allowDests:       ruleSet{},
		allowPairs:       ruleSet{},
		tempAllowOrigins: ruleSet{},
		tempAllowDests:   ruleSet{},
		tempAllowPairs:   ruleSet{},
		denyOrigins:      ruleSet{},
		denyDests:        ruleSet{},
		denyPairs:        ruleSet{},
		persist:          persist,
		logger:           logger,
	}
}

// LoadPersisted replaces the permanent sets from the persistence
// provider. Missing keys are treated as empty rule sets.
func (s *Store) LoadPersisted() error {
	if s.persist == nil {
		return nil
	}
	for _, key := range []string{StorageKeyAllow, StorageKeyDeny} {
		doc, ok, err := s.persist.Load(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		action := domain.ActionAllow
		if key == StorageKeyDeny {
			action = domain.ActionDeny
		}
		if err := s.importLocked(action, doc); err != nil {
			return err
		}
	}
	return nil
}

// AddAllowRule adds a permanent allow rule and flushes. Idempotent.
func (s *Store) AddAllowRule(r domain.Rule) error {
	return s.mutatePermanent(domain.ActionAllow, r, true)
}

// RemoveAllowRule removes a permanent allow rule and flushes. Idempotent.
func (s *Store) RemoveAllowRule(r domain.Rule) error {
	return s.mutatePermanent(domain.ActionAllow, r, false)
}

// AddDenyRule adds a permanent deny rule and flushes. Idempotent.
func (s *Store) AddDenyRule(r domain.Rule) error {
	return s.mutatePermanent(domain.ActionDeny, r, true)
}

// RemoveDenyRule removes a permanent deny rule and flushes. Idempotent.
func (s *Store) RemoveDenyRule(r domain.Rule) error {
	return s.mutatePermanent(domain.ActionDeny, r, false)
}

func (s *Store) mutatePermanent(action domain.RuleAction, r domain.Rule, add bool) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	set := s.permanentSet(action, r.Kind())
	if add {
		set.add(r)
	} else {
		set.remove(r)
	}
	s.rebuildFilterLocked()
	doc := s.exportLocked(action)
	s.mu.Unlock()

	s.flush(action, doc)
	return nil
}

// AddTemporaryAllowRule adds a session-scoped allow rule. Temporary rules
// are never persisted and have no removal by identity; they are wiped en
// masse by RemoveAllTemporaryRules.
func (s *Store) AddTemporaryAllowRule(r domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.temporarySet(r.Kind()).add(r)
	s.rebuildFilterLocked()
	s.mu.Unlock()
	return nil
}

// RemoveAllTemporaryRules wipes every temporary rule (session end,
// private-browsing exit, or explicit user revoke).
func (s *Store) RemoveAllTemporaryRules() {
	s.mu.Lock()
	s.tempAllowOrigins = ruleSet{}
	s.tempAllowDests = ruleSet{}
	s.tempAllowPairs = ruleSet{}
	s.rebuildFilterLocked()
	s.mu.Unlock()
}

// TemporaryCount returns the number of temporary rules currently held.
func (s *Store) TemporaryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tempAllowOrigins) + len(s.tempAllowDests) + len(s.tempAllowPairs)
}

// RuleExists reports whether an identical rule is stored in the given
// action and scope.
func (s *Store) RuleExists(action domain.RuleAction, scope domain.RuleScope, r domain.Rule) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if scope == domain.ScopeTemporary {
		if action != domain.ActionAllow {
			return false
		}
		return s.temporarySet(r.Kind()).has(r)
	}
	return s.permanentSet(action, r.Kind()).has(r)
}

// MatchOrigin returns every stored origin-only rule whose pattern matches
// the reference, permanent and temporary alike.
func (s *Store) MatchOrigin(origin domain.URIRef) []domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.mightMatchLocked(origin) {
		return nil
	}
	var out []domain.Match
	out = s.collect(out, s.allowOrigins, domain.ActionAllow, domain.ScopePermanent, func(r domain.Rule) bool {
		return r.Origin.Matches(origin)
	})
	out = s.collect(out, s.tempAllowOrigins, domain.ActionAllow, domain.ScopeTemporary, func(r domain.Rule) bool {
		return r.Origin.Matches(origin)
	})
	out = s.collect(out, s.denyOrigins, domain.ActionDeny, domain.ScopePermanent, func(r domain.Rule) bool {
		return r.Origin.Matches(origin)
	})
	return out
}

// MatchDestination returns every stored destination-only rule whose
// pattern matches the reference.
func (s *Store) MatchDestination(dest domain.URIRef) []domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.mightMatchLocked(dest) {
		return nil
	}
	var out []domain.Match
	out = s.collect(out, s.allowDests, domain.ActionAllow, domain.ScopePermanent, func(r domain.Rule) bool {
		return r.Dest.Matches(dest)
	})
	out = s.collect(out, s.tempAllowDests, domain.ActionAllow, domain.ScopeTemporary, func(r domain.Rule) bool {
		return r.Dest.Matches(dest)
	})
	out = s.collect(out, s.denyDests, domain.ActionDeny, domain.ScopePermanent, func(r domain.Rule) bool {
		return r.Dest.Matches(dest)
	})
	return out
}

// MatchOriginToDestination returns every stored pair rule matching both
// sides.
func (s *Store) MatchOriginToDestination(origin, dest domain.URIRef) []domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.mightMatchLocked(origin) {
		return nil
	}
	both := func(r domain.Rule) bool {
		return r.Origin.Matches(origin) && r.Dest.Matches(dest)
	}
	var out []domain.Match
	out = s.collect(out, s.allowPairs, domain.ActionAllow, domain.ScopePermanent, both)
	out = s.collect(out, s.tempAllowPairs, domain.ActionAllow, domain.ScopeTemporary, both)
	out = s.collect(out, s.denyPairs, domain.ActionDeny, domain.ScopePermanent, both)
	return out
}

func (s *Store) collect(out []domain.Match, set ruleSet, action domain.RuleAction, scope domain.RuleScope, matches func(domain.Rule) bool) []domain.Match {
	for _, r := range set {
		if matches(r) {
			out = append(out, domain.Match{Rule: r, Action: action, Scope: scope})
		}
	}
	return out
}

func (s *Store) permanentSet(action domain.RuleAction, kind domain.RuleKind) ruleSet {
	if action == domain.ActionDeny {
		switch kind {
		case domain.RuleKindOrigin:
			return s.denyOrigins
		case domain.RuleKindDestination:
			return s.denyDests
		default:
			return s.denyPairs
		}
	}
	switch kind {
	case domain.RuleKindOrigin:
		return s.allowOrigins
	case domain.RuleKindDestination:
		return s.allowDests
	default:
		return s.allowPairs
	}
}

func (s *Store) temporarySet(kind domain.RuleKind) ruleSet {
	switch kind {
	case domain.RuleKindOrigin:
		return s.tempAllowOrigins
	case domain.RuleKindDestination:
		return s.tempAllowDests
	default:
		return s.tempAllowPairs
	}
}

// rebuildFilterLocked rebuilds the negative pre-filter over every rule
// host anchor. Wildcard patterns are anchored at their apex so the
// suffix walk in mightMatchLocked can find them.
func (s *Store) rebuildFilterLocked() {
	var anchors []string
	addEndpoint := func(e *domain.Endpoint) {
		if e == nil {
			return
		}
		anchors = append(anchors, strings.TrimPrefix(e.Host, "*."))
	}
	for _, set := range s.allSetsLocked() {
		for _, r := range set {
			addEndpoint(r.Origin)
			addEndpoint(r.Dest)
		}
	}
	if len(anchors) == 0 {
		s.filter = nil
		return
	}
	bf := bitsbloom.NewWithEstimates(uint(len(anchors)), filterFPRate)
	for _, a := range anchors {
		bf.AddString(a)
	}
	s.filter = bf
}

func (s *Store) allSetsLocked() []ruleSet {
	return []ruleSet{
		s.allowOrigins, s.allowDests, s.allowPairs,
		s.tempAllowOrigins, s.tempAllowDests, s.tempAllowPairs,
		s.denyOrigins, s.denyDests, s.denyPairs,
	}
}

// mightMatchLocked tests the reference host and its dot-trimmed suffixes
// against the filter. A negative answer is authoritative; a positive one
// sends the caller to the real index scan.
func (s *Store) mightMatchLocked(ref domain.URIRef) bool {
	if s.filter == nil {
		return false
	}
	for _, host := range []string{ref.Host, ref.Identifier} {
		h := host
		for h != "" {
			if s.filter.TestString(h) {
				return true
			}
			i := strings.IndexByte(h, '.')
			if i < 0 {
				break
			}
			h = h[i+1:]
		}
	}
	return false
}

// flush pushes a serialized document through the persistence provider.
// Failure keeps the in-memory state and is surfaced through the log only.
func (s *Store) flush(action domain.RuleAction, doc string) {
	if s.persist == nil {
		return
	}
	key := StorageKeyAllow
	if action == domain.ActionDeny {
		key = StorageKeyDeny
	}
	if err := s.persist.Save(key, doc); err != nil {
		s.logger.Error(map[string]any{
			"key":   key,
			"error": err.Error(),
		}, "rule persistence flush failed; in-memory state retained")
	}
}
