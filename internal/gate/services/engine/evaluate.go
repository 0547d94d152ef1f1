package engine

import (
	"strings"

	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

// Evaluate decides one candidate request. It is total: it never panics
// or returns an error to the host, and any internal failure resolves to
// the safer DENY.
func (e *Engine) Evaluate(originURI, destURI string, ctx domain.RequestContext) domain.Decision {
	// Internal requests bypass the suppressor entirely and are never
	// recorded.
	if d, ok := e.internalRequest(originURI, destURI); ok {
		return d
	}

	if d, ok := e.suppressor.Check(originURI, destURI); ok {
		return d
	}

	d := e.decide(originURI, destURI, ctx, false)
	e.suppressor.Store(originURI, destURI, d)

	if !d.Allow && ctx.IsRedirect {
		e.traceBlockedRedirect(originURI, destURI)
	}
	return d
}

// internalRequest implements the internal-request filter: in-process
// schemes, an absent origin, and sentinel destination hosts are allowed
// without mediation.
func (e *Engine) internalRequest(originURI, destURI string) (domain.Decision, bool) {
	if strings.TrimSpace(originURI) == "" {
		return domain.Allowed(domain.ReasonInternal), true
	}
	if internalSchemes[uriutil.Scheme(destURI)] {
		return domain.Allowed(domain.ReasonInternal), true
	}
	if internalDestHosts[uriutil.Host(destURI)] {
		return domain.Allowed(domain.ReasonInternal), true
	}
	return domain.Decision{}, false
}

// decide runs the precedence algorithm. retry guards the
// mapped-destination recursion against re-entering itself.
func (e *Engine) decide(originURI, destURI string, ctx domain.RequestContext, retry bool) domain.Decision {
	// Same-origin special cases come before everything rule-shaped.
	if originURI == destURI {
		return domain.Allowed(domain.ReasonTrivial)
	}

	if d, ok := e.userAction(originURI, destURI); ok {
		e.ledger.RecordAllowed(originURI, destURI, false)
		return d
	}

	if e.ident.Identify(originURI) == e.ident.Identify(destURI) {
		e.ledger.RecordAllowed(originURI, destURI, false)
		return domain.Allowed(domain.ReasonSameHost)
	}

	level := e.ident.Level()
	originRef, oErr := uriutil.Split(originURI, level)
	destRef, dErr := uriutil.Split(destURI, level)
	if oErr != nil || dErr != nil {
		err := oErr
		if err == nil {
			err = dErr
		}
		e.logger.Error(map[string]any{
			"origin": originURI,
			"dest":   destURI,
			"error":  err.Error(),
		}, "URI parse failure during evaluation; failing closed")
		return domain.Denied(domain.ReasonParseError)
	}

	if d, ok := e.matchRules(originRef, destRef); ok {
		if d.Allow {
			e.ledger.RecordAllowed(originURI, destURI, false)
		} else {
			e.ledger.RecordRejected(originURI, destURI)
		}
		return d
	}

	for _, prefix := range e.privilegedOrigins {
		if prefix != "" && strings.HasPrefix(originURI, prefix) {
			return domain.Allowed(domain.ReasonPrivileged)
		}
	}

	for _, cr := range e.compatRules {
		if cr.Matches(originURI, destURI) {
			return domain.Allowed(domain.ReasonCompatibilityPrefix + cr.Label)
		}
	}

	// Mapped-destination retry: a denied rewritten destination may still
	// be allowed under its pre-rewrite target.
	if !retry {
		originals := e.provenance.OriginalDestinations(destURI)
		if ctx.RewriteOf != "" {
			originals = append(originals, ctx.RewriteOf)
		}
		for _, original := range originals {
			if original == destURI {
				continue
			}
			if d := e.decide(originURI, original, ctx, true); d.Allow {
				return d
			}
		}
	}

	e.ledger.RecordRejected(originURI, destURI)
	return domain.Denied(domain.ReasonDefaultDeny)
}

// userAction checks provenance in fixed order: clicked link, submitted
// form, history navigation, previously allowed redirect. These allows
// are flagged unforbidable because no stored rule produced them.
func (e *Engine) userAction(originURI, destURI string) (domain.Decision, bool) {
	switch {
	case e.provenance.IsLinkClicked(originURI, destURI):
		return domain.AllowedByUser(domain.ReasonLinkClick), true
	case e.provenance.IsFormSubmitted(originURI, destURI):
		return domain.AllowedByUser(domain.ReasonFormSubmission), true
	case e.provenance.ConsumeHistoryRequest(destURI):
		return domain.AllowedByUser(domain.ReasonHistory), true
	case e.provenance.IsAllowedRedirect(originURI, destURI):
		return domain.AllowedByUser(domain.ReasonUserRedirect), true
	}
	return domain.Decision{}, false
}

// matchRules walks the six rule levels in precedence order. Pair rules
// outrank single-sided rules because they are more specific; explicit
// deny is checked only after every allow level has had its chance.
func (e *Engine) matchRules(originRef, destRef domain.URIRef) (domain.Decision, bool) {
	pairs := e.rules.MatchOriginToDestination(originRef, destRef)
	origins := e.rules.MatchOrigin(originRef)
	dests := e.rules.MatchDestination(destRef)

	if m, ok := firstMatch(pairs, domain.ActionAllow); ok {
		return domain.AllowedByRule(domain.ReasonOriginToDestAllow, m), true
	}
	if m, ok := firstMatch(origins, domain.ActionAllow); ok {
		return domain.AllowedByRule(domain.ReasonOriginAllow, m), true
	}
	if m, ok := firstMatch(dests, domain.ActionAllow); ok {
		return domain.AllowedByRule(domain.ReasonDestAllow, m), true
	}
	if m, ok := firstMatch(pairs, domain.ActionDeny); ok {
		return domain.DeniedByRule(domain.ReasonOriginToDestDeny, m), true
	}
	if m, ok := firstMatch(origins, domain.ActionDeny); ok {
		return domain.DeniedByRule(domain.ReasonOriginDeny, m), true
	}
	if m, ok := firstMatch(dests, domain.ActionDeny); ok {
		return domain.DeniedByRule(domain.ReasonDestDeny, m), true
	}
	return domain.Decision{}, false
}

func firstMatch(ms []domain.Match, action domain.RuleAction) (domain.Match, bool) {
	for _, m := range ms {
		if m.Action == action {
			return m, true
		}
	}
	return domain.Match{}, false
}
