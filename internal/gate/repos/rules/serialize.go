package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/perch-io/crossgate/internal/gate/domain"
)

// Group headers of the line-oriented rule document. The format is the
// persisted and import/export contract and round-trips bit-for-bit:
// one canonical rule per line under its kind's header, lines sorted
// within each group, no escaping.
const (
	headerOrigins = "[origins]"
	headerDests   = "[destinations]"
	headerPairs   = "[origins-to-destinations]"
)

// Export serializes the permanent rules of one action into the grouped
// textual format.
func (s *Store) Export(action domain.RuleAction) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLocked(action)
}

func (s *Store) exportLocked(action domain.RuleAction) string {
	var b strings.Builder
	writeGroup := func(header string, set ruleSet) {
		b.WriteString(header)
		b.WriteByte('\n')
		lines := make([]string, 0, len(set))
		for _, r := range set {
			lines = append(lines, r.ExportLine())
		}
		sort.Strings(lines)
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	writeGroup(headerOrigins, s.permanentSet(action, domain.RuleKindOrigin))
	writeGroup(headerDests, s.permanentSet(action, domain.RuleKindDestination))
	writeGroup(headerPairs, s.permanentSet(action, domain.RuleKindOriginToDestination))
	return b.String()
}

// Import replaces the permanent rules of one action from a grouped
// document, then flushes. Temporary rules are untouched.
func (s *Store) Import(action domain.RuleAction, doc string) error {
	s.mu.Lock()
	if err := s.importLocked(action, doc); err != nil {
		s.mu.Unlock()
		return err
	}
	flushed := s.exportLocked(action)
	s.mu.Unlock()

	s.flush(action, flushed)
	return nil
}

func (s *Store) importLocked(action domain.RuleAction, doc string) error {
	origins, dests, pairs, err := parseDocument(doc)
	if err != nil {
		return err
	}
	replace := func(kind domain.RuleKind, rs []domain.Rule) {
		set := ruleSet{}
		for _, r := range rs {
			set.add(r)
		}
		switch {
		case action == domain.ActionDeny && kind == domain.RuleKindOrigin:
			s.denyOrigins = set
		case action == domain.ActionDeny && kind == domain.RuleKindDestination:
			s.denyDests = set
		case action == domain.ActionDeny:
			s.denyPairs = set
		case kind == domain.RuleKindOrigin:
			s.allowOrigins = set
		case kind == domain.RuleKindDestination:
			s.allowDests = set
		default:
			s.allowPairs = set
		}
	}
	replace(domain.RuleKindOrigin, origins)
	replace(domain.RuleKindDestination, dests)
	replace(domain.RuleKindOriginToDestination, pairs)
	s.rebuildFilterLocked()
	return nil
}

// parseDocument reads a grouped rule document. Blank lines are skipped;
// rule lines before any header, or an unknown header, are errors.
func parseDocument(doc string) (origins, dests, pairs []domain.Rule, err error) {
	kind := domain.RuleKind(255)
	seenHeader := false
	for n, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case headerOrigins:
			kind, seenHeader = domain.RuleKindOrigin, true
			continue
		case headerDests:
			kind, seenHeader = domain.RuleKindDestination, true
			continue
		case headerPairs:
			kind, seenHeader = domain.RuleKindOriginToDestination, true
			continue
		}
		if strings.HasPrefix(line, "[") {
			return nil, nil, nil, fmt.Errorf("line %d: unknown group header %q", n+1, line)
		}
		if !seenHeader {
			return nil, nil, nil, fmt.Errorf("line %d: rule %q before any group header", n+1, line)
		}
		r, perr := domain.ParseGroupedRule(kind, line)
		if perr != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", n+1, perr)
		}
		switch kind {
		case domain.RuleKindOrigin:
			origins = append(origins, r)
		case domain.RuleKindDestination:
			dests = append(dests, r)
		default:
			pairs = append(pairs, r)
		}
	}
	return origins, dests, pairs, nil
}
