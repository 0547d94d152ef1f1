package engine

import (
	"github.com/perch-io/crossgate/internal/gate/domain"
	"github.com/perch-io/crossgate/internal/gate/repos/ledger"
)

// RuleStore is what the engine needs from the rule index.
type RuleStore interface {
	MatchOrigin(origin domain.URIRef) []domain.Match
	MatchDestination(dest domain.URIRef) []domain.Match
	MatchOriginToDestination(origin, dest domain.URIRef) []domain.Match
	AddTemporaryAllowRule(r domain.Rule) error
	RemoveAllTemporaryRules()
	TemporaryCount() int
}

// Ledger records decisions and answers the transitive rejected query.
type Ledger interface {
	RecordAllowed(originURI, destURI string, isRedirectInsert bool)
	RecordRejected(originURI, destURI string)
	OriginHasRejectedRequests(originURI string) bool
	Clear()
	AllowedSnapshot() ledger.Snapshot
	RejectedSnapshot() ledger.Snapshot
}

// Provenance is the engine's view of the user-action and redirect maps.
type Provenance interface {
	RegisterLinkClicked(originURL, destURL string)
	IsLinkClicked(originURL, destURL string) bool
	LinkClickSources(destURL string) []string
	RegisterFormSubmitted(originURL, destURL string)
	IsFormSubmitted(originURL, destURL string) bool
	FormSubmissionSources(destURL string) []string
	RegisterHistoryRequest(destURL string)
	ConsumeHistoryRequest(destURL string) bool
	RegisterAllowedRedirect(originURL, destURL string)
	IsAllowedRedirect(originURL, destURL string) bool
	RedirectSource(destURL string) (string, bool)
	MapDestinations(originalDestURL, newDestURL string)
	OriginalDestinations(newDestURL string) []string
}

// Identifier derives comparison identifiers at the active level.
type Identifier interface {
	Identify(uri string) string
	Level() domain.IdentLevel
	SetLevel(level domain.IdentLevel)
}

// Suppressor is the duplicate-call cache.
type Suppressor interface {
	Check(origin, dest string) (domain.Decision, bool)
	Store(origin, dest string, d domain.Decision)
	Reset()
}
