// Package engine implements the decision engine: given an origin URI, a
// destination URI, and the host's context hints, it returns ALLOW or
// DENY with a reason, maintaining the request ledger and redirect chain
// bookkeeping along the way.
package engine

import (
	"github.com/perch-io/crossgate/internal/gate/common/log"
	"github.com/perch-io/crossgate/internal/gate/domain"
)

// DefaultMaxRedirectWalk bounds the backward walk over the allowed
// redirect map. Redirect loops exist in the wild and must not hang the
// request pipeline.
const DefaultMaxRedirectWalk = 100

// internalSchemes are handled in-process by the host and never mediated.
var internalSchemes = map[string]bool{
	"resource":      true,
	"about":         true,
	"chrome":        true,
	"moz-extension": true,
	"moz-icon":      true,
	"data":          true,
	"blob":          true,
	"javascript":    true,
	"view-source":   true,
}

// internalDestHosts are sentinel destination hosts some hosts use for
// chrome-internal targets.
var internalDestHosts = map[string]bool{
	"global":  true,
	"browser": true,
}

// Engine evaluates candidate requests. Create exactly one per host; all
// state lives in the injected collaborators, each of which guards its
// own structures, so concurrently in-flight evaluations are safe.
type Engine struct {
	rules      RuleStore
	ledger     Ledger
	provenance Provenance
	ident      Identifier
	suppressor Suppressor
	logger     log.Logger

	compatRules []domain.CompatRule

	// privilegedOrigins is a policy knob, not an unquestionable default:
	// unconditionally trusting chrome-level origins is a documented risk
	// inherited from the layered-rule design.
	privilegedOrigins []string

	maxRedirectWalk int
}

// Options collects the engine's collaborators and policy knobs.
type Options struct {
	Rules      RuleStore
	Ledger     Ledger
	Provenance Provenance
	Identifier Identifier
	Suppressor Suppressor
	Logger     log.Logger

	CompatRules       []domain.CompatRule
	PrivilegedOrigins []string
	MaxRedirectWalk   int
}

// New constructs an Engine.
func New(opts Options) *Engine {
	walk := opts.MaxRedirectWalk
	if walk <= 0 {
		walk = DefaultMaxRedirectWalk
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Engine{
		rules:             opts.Rules,
		ledger:            opts.Ledger,
		provenance:        opts.Provenance,
		ident:             opts.Identifier,
		suppressor:        opts.Suppressor,
		logger:            logger,
		compatRules:       opts.CompatRules,
		privilegedOrigins: opts.PrivilegedOrigins,
		maxRedirectWalk:   walk,
	}
}

// RegisterLinkClicked records a user link click observed by the host.
func (e *Engine) RegisterLinkClicked(originURL, destURL string) {
	e.provenance.RegisterLinkClicked(originURL, destURL)
}

// RegisterFormSubmitted records a form submission observed by the host.
func (e *Engine) RegisterFormSubmitted(originURL, destURL string) {
	e.provenance.RegisterFormSubmitted(originURL, destURL)
}

// RegisterHistoryRequest records a back/forward navigation target.
func (e *Engine) RegisterHistoryRequest(destURL string) {
	e.provenance.RegisterHistoryRequest(destURL)
}

// RegisterAllowedRedirect records a redirect hop the host allowed, so a
// later blocked hop can be traced back through it.
func (e *Engine) RegisterAllowedRedirect(originURL, destURL string) {
	e.provenance.RegisterAllowedRedirect(originURL, destURL)
}

// MapDestinations records a third-party rewrite of a request's target.
// If the rewritten destination is later denied, evaluation retries
// against the original.
func (e *Engine) MapDestinations(originalDestURL, newDestURL string) {
	e.provenance.MapDestinations(originalDestURL, newDestURL)
}
