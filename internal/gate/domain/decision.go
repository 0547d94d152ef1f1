package domain

// Decision reasons. These are the strings surfaced to the host for
// display and debugging; they are part of the engine's contract.
const (
	ReasonInternal       = "internal request"
	ReasonTrivial        = "identical origin and destination"
	ReasonLinkClick      = "user-initiated link click"
	ReasonFormSubmission = "user-initiated form submission"
	ReasonHistory        = "history navigation"
	ReasonUserRedirect   = "previously allowed redirect"
	ReasonSameHost       = "same host"
	ReasonPrivileged     = "privileged origin"
	ReasonDefaultDeny    = "no matching rule"
	ReasonParseError     = "unparseable URI"

	ReasonOriginToDestAllow = "origin to destination allow rule"
	ReasonOriginAllow       = "origin allow rule"
	ReasonDestAllow         = "destination allow rule"
	ReasonOriginToDestDeny  = "origin to destination deny rule"
	ReasonOriginDeny        = "origin deny rule"
	ReasonDestDeny          = "destination deny rule"

	// ReasonCompatibilityPrefix prefixes the compatibility rule's label.
	ReasonCompatibilityPrefix = "compatibility: "
)

// Decision is the outcome of evaluating one candidate request.
//
// Unforbidable marks allows that came from user provenance rather than a
// stored rule; the host must not offer a "forbid this" affordance for
// them because there is no rule to remove.
type Decision struct {
	Allow        bool
	Reason       string
	MatchedRule  string // canonical rule string when a stored rule fired
	Unforbidable bool
}

// Allowed constructs an allow decision.
func Allowed(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

// AllowedByRule constructs an allow decision attributed to a stored rule.
func AllowedByRule(reason string, m Match) Decision {
	return Decision{Allow: true, Reason: reason, MatchedRule: m.Rule.String()}
}

// AllowedByUser constructs an unforbidable allow from user provenance.
func AllowedByUser(reason string) Decision {
	return Decision{Allow: true, Reason: reason, Unforbidable: true}
}

// Denied constructs a deny decision.
func Denied(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// DeniedByRule constructs a deny decision attributed to a stored rule.
func DeniedByRule(reason string, m Match) Decision {
	return Decision{Allow: false, Reason: reason, MatchedRule: m.Rule.String()}
}

// RequestContext carries the host's hints about a candidate request.
// The provenance flags are advisory; the engine trusts only its own
// registered provenance maps when granting user-action allows.
type RequestContext struct {
	IsTopLevelNavigation bool
	IsLinkClick          bool
	IsFormSubmission     bool
	IsHistoryNav         bool
	IsRedirect           bool

	// RewriteOf names the pre-rewrite destination when the host knows the
	// request was rewritten by a companion feature.
	RewriteOf string
}

// CompatRule is an injected compatibility shim: a request is allowed when
// each non-empty prefix literally prefixes the respective URI.
type CompatRule struct {
	OriginPrefix string
	DestPrefix   string
	Label        string
}

// Matches reports whether the compat rule applies to the pair.
func (c CompatRule) Matches(originURI, destURI string) bool {
	if c.OriginPrefix == "" && c.DestPrefix == "" {
		return false
	}
	if c.OriginPrefix != "" && !hasPrefix(originURI, c.OriginPrefix) {
		return false
	}
	if c.DestPrefix != "" && !hasPrefix(destURI, c.DestPrefix) {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
