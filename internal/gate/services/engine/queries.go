package engine

import (
	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
	"github.com/perch-io/crossgate/internal/gate/domain"
	"github.com/perch-io/crossgate/internal/gate/repos/ledger"
)

// Read-only query surface for the host UI. None of these mutate engine
// state; snapshots are deep copies.

// IsAllowedOrigin reports whether a permanent allow rule matches the
// origin URI.
func (e *Engine) IsAllowedOrigin(uri string) bool {
	return e.anyOriginMatch(uri, domain.ScopePermanent)
}

// IsTemporarilyAllowedOrigin reports whether a temporary allow rule
// matches the origin URI.
func (e *Engine) IsTemporarilyAllowedOrigin(uri string) bool {
	return e.anyOriginMatch(uri, domain.ScopeTemporary)
}

// IsAllowedDestination reports whether a permanent allow rule matches
// the destination URI.
func (e *Engine) IsAllowedDestination(uri string) bool {
	return e.anyDestMatch(uri, domain.ScopePermanent)
}

// IsTemporarilyAllowedDestination reports whether a temporary allow rule
// matches the destination URI.
func (e *Engine) IsTemporarilyAllowedDestination(uri string) bool {
	return e.anyDestMatch(uri, domain.ScopeTemporary)
}

// IsAllowedOriginToDestination reports whether a permanent pair allow
// rule matches.
func (e *Engine) IsAllowedOriginToDestination(originURI, destURI string) bool {
	return e.anyPairMatch(originURI, destURI, domain.ScopePermanent)
}

// IsTemporarilyAllowedOriginToDestination reports whether a temporary
// pair allow rule matches.
func (e *Engine) IsTemporarilyAllowedOriginToDestination(originURI, destURI string) bool {
	return e.anyPairMatch(originURI, destURI, domain.ScopeTemporary)
}

func (e *Engine) anyOriginMatch(uri string, scope domain.RuleScope) bool {
	ref, err := uriutil.Split(uri, e.ident.Level())
	if err != nil {
		return false
	}
	return anyAllow(e.rules.MatchOrigin(ref), scope)
}

func (e *Engine) anyDestMatch(uri string, scope domain.RuleScope) bool {
	ref, err := uriutil.Split(uri, e.ident.Level())
	if err != nil {
		return false
	}
	return anyAllow(e.rules.MatchDestination(ref), scope)
}

func (e *Engine) anyPairMatch(originURI, destURI string, scope domain.RuleScope) bool {
	level := e.ident.Level()
	oRef, err := uriutil.Split(originURI, level)
	if err != nil {
		return false
	}
	dRef, err := uriutil.Split(destURI, level)
	if err != nil {
		return false
	}
	return anyAllow(e.rules.MatchOriginToDestination(oRef, dRef), scope)
}

func anyAllow(ms []domain.Match, scope domain.RuleScope) bool {
	for _, m := range ms {
		if m.Action == domain.ActionAllow && m.Scope == scope {
			return true
		}
	}
	return false
}

// AreTemporaryPermissionsGranted reports whether any temporary rule is
// in effect.
func (e *Engine) AreTemporaryPermissionsGranted() bool {
	return e.rules.TemporaryCount() > 0
}

// RevokeTemporaryPermissions wipes every temporary rule.
func (e *Engine) RevokeTemporaryPermissions() {
	e.rules.RemoveAllTemporaryRules()
}

// OriginHasRejectedRequests reports whether the origin has rejected
// requests, directly or transitively through allowed destinations.
func (e *Engine) OriginHasRejectedRequests(uri string) bool {
	return e.ledger.OriginHasRejectedRequests(uri)
}

// AllowedRequests returns a deep copy of the allowed ledger.
func (e *Engine) AllowedRequests() ledger.Snapshot {
	return e.ledger.AllowedSnapshot()
}

// RejectedRequests returns a deep copy of the rejected ledger.
func (e *Engine) RejectedRequests() ledger.Snapshot {
	return e.ledger.RejectedSnapshot()
}

// IdentLevel returns the active identification level.
func (e *Engine) IdentLevel() domain.IdentLevel {
	return e.ident.Level()
}

// SetIdentLevel switches the identification level. Stored rules are not
// re-keyed; the ledgers and the last-decision slot are cleared because
// their identifier keys were derived at the old level.
func (e *Engine) SetIdentLevel(level domain.IdentLevel) {
	if level == e.ident.Level() {
		return
	}
	e.ident.SetLevel(level)
	e.ledger.Clear()
	e.suppressor.Reset()
	e.logger.Info(map[string]any{"level": level.String()}, "identification level changed; ledgers cleared")
}
