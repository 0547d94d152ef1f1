package domain

import (
	"fmt"
	"strings"
)

// RuleKind describes which sides of a request a rule constrains.
type RuleKind uint8

const (
	// RuleKindOrigin matches any destination requested from the origin.
	RuleKindOrigin RuleKind = iota
	// RuleKindDestination matches any origin requesting the destination.
	RuleKindDestination
	// RuleKindOriginToDestination matches only the specific pair.
	RuleKindOriginToDestination
)

// String returns a stable string representation of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleKindOrigin:
		return "origin"
	case RuleKindDestination:
		return "destination"
	case RuleKindOriginToDestination:
		return "origin-to-destination"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// RuleAction partitions rules into allow and deny sets.
type RuleAction uint8

const (
	ActionAllow RuleAction = iota
	ActionDeny
)

func (a RuleAction) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionDeny:
		return "deny"
	default:
		return fmt.Sprintf("RuleAction(%d)", a)
	}
}

// RuleScope partitions rules into persisted and session-only sets.
type RuleScope uint8

const (
	ScopePermanent RuleScope = iota
	ScopeTemporary
)

func (s RuleScope) String() string {
	switch s {
	case ScopePermanent:
		return "permanent"
	case ScopeTemporary:
		return "temporary"
	default:
		return fmt.Sprintf("RuleScope(%d)", s)
	}
}

// Rule is a stored pattern with an optional origin part and an optional
// destination part. At least one part must be present.
type Rule struct {
	Origin *Endpoint
	Dest   *Endpoint
}

// NewOriginRule builds a rule that matches every request from the origin.
func NewOriginRule(origin Endpoint) (Rule, error) {
	r := Rule{Origin: &origin}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// NewDestinationRule builds a rule that matches every request to the
// destination.
func NewDestinationRule(dest Endpoint) (Rule, error) {
	r := Rule{Dest: &dest}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// NewOriginToDestinationRule builds a rule that matches only requests from
// the origin to the destination.
func NewOriginToDestinationRule(origin, dest Endpoint) (Rule, error) {
	r := Rule{Origin: &origin, Dest: &dest}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Kind reports which sides the rule constrains.
func (r Rule) Kind() RuleKind {
	switch {
	case r.Origin != nil && r.Dest != nil:
		return RuleKindOriginToDestination
	case r.Origin != nil:
		return RuleKindOrigin
	default:
		return RuleKindDestination
	}
}

// Validate checks that the rule has at least one valid part.
func (r Rule) Validate() error {
	if r.Origin == nil && r.Dest == nil {
		return fmt.Errorf("rule must have an origin part, a destination part, or both")
	}
	if r.Origin != nil {
		if err := r.Origin.Validate(); err != nil {
			return fmt.Errorf("origin part: %w", err)
		}
	}
	if r.Dest != nil {
		if err := r.Dest.Validate(); err != nil {
			return fmt.Errorf("destination part: %w", err)
		}
	}
	return nil
}

// String returns the canonical compact form: "origin|dest" with either
// side empty when absent. Single-sided rules keep the separator so the
// form stays unambiguous outside a grouped document.
func (r Rule) String() string {
	var o, d string
	if r.Origin != nil {
		o = r.Origin.String()
	}
	if r.Dest != nil {
		d = r.Dest.String()
	}
	if r.Kind() == RuleKindOriginToDestination {
		return o + "|" + d
	}
	if r.Origin != nil {
		return o + "|"
	}
	return "|" + d
}

// ExportLine returns the rule's line in the grouped import/export format.
// Inside a group the kind is implied by the header, so single-sided rules
// drop the separator.
func (r Rule) ExportLine() string {
	switch r.Kind() {
	case RuleKindOrigin:
		return r.Origin.String()
	case RuleKindDestination:
		return r.Dest.String()
	default:
		return r.Origin.String() + "|" + r.Dest.String()
	}
}

// ParseRule parses the compact "origin|dest" form produced by String.
// A trailing or leading bare endpoint without a separator is accepted and
// treated as an origin rule.
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}
	i := strings.IndexByte(s, '|')
	if i < 0 {
		ep, err := ParseEndpoint(s)
		if err != nil {
			return Rule{}, err
		}
		return NewOriginRule(ep)
	}
	if strings.IndexByte(s[i+1:], '|') >= 0 {
		return Rule{}, fmt.Errorf("rule %q has more than one separator", s)
	}
	oPart, dPart := s[:i], s[i+1:]
	switch {
	case oPart != "" && dPart != "":
		o, err := ParseEndpoint(oPart)
		if err != nil {
			return Rule{}, err
		}
		d, err := ParseEndpoint(dPart)
		if err != nil {
			return Rule{}, err
		}
		return NewOriginToDestinationRule(o, d)
	case oPart != "":
		o, err := ParseEndpoint(oPart)
		if err != nil {
			return Rule{}, err
		}
		return NewOriginRule(o)
	default:
		d, err := ParseEndpoint(dPart)
		if err != nil {
			return Rule{}, err
		}
		return NewDestinationRule(d)
	}
}

// ParseGroupedRule parses a line from a grouped document, where the group
// header supplies the kind.
func ParseGroupedRule(kind RuleKind, line string) (Rule, error) {
	line = strings.TrimSpace(line)
	switch kind {
	case RuleKindOrigin:
		ep, err := ParseEndpoint(line)
		if err != nil {
			return Rule{}, err
		}
		return NewOriginRule(ep)
	case RuleKindDestination:
		ep, err := ParseEndpoint(line)
		if err != nil {
			return Rule{}, err
		}
		return NewDestinationRule(ep)
	case RuleKindOriginToDestination:
		i := strings.IndexByte(line, '|')
		if i <= 0 || i == len(line)-1 {
			return Rule{}, fmt.Errorf("origin-to-destination rule %q must be origin|dest", line)
		}
		o, err := ParseEndpoint(line[:i])
		if err != nil {
			return Rule{}, err
		}
		d, err := ParseEndpoint(line[i+1:])
		if err != nil {
			return Rule{}, err
		}
		return NewOriginToDestinationRule(o, d)
	default:
		return Rule{}, fmt.Errorf("unsupported RuleKind: %d", kind)
	}
}

// Match pairs a rule that fired with the set it came from, so callers can
// report which rule produced a decision.
type Match struct {
	Rule   Rule
	Action RuleAction
	Scope  RuleScope
}
