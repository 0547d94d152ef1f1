// Package provenance records the user actions and redirect history the
// host observes, so the decision engine can recognize requests the user
// actually asked for and trace blocked redirects back to their source.
package provenance

import (
	"sync"

	"github.com/perch-io/crossgate/internal/gate/common/uriutil"
)

// pairSet is a two-level membership map: first key -> second key -> true.
type pairSet map[string]map[string]bool

func (p pairSet) put(a, b string) {
	inner := p[a]
	if inner == nil {
		inner = map[string]bool{}
		p[a] = inner
	}
	inner[b] = true
}

func (p pairSet) has(a, b string) bool {
	return p[a][b]
}

func (p pairSet) keysOf(a string) []string {
	inner := p[a]
	if len(inner) == 0 {
		return nil
	}
	out := make([]string, 0, len(inner))
	for k := range inner {
		out = append(out, k)
	}
	return out
}

// Tracker holds the provenance maps and their reverse indexes. Forward
// maps answer "did the user cause origin -> dest"; reverse maps answer
// "which origins led to dest", which the redirect chain tracker needs.
//
// Click and form entries are deliberately never deleted on consult:
// back/forward navigation must be able to find them again.
type Tracker struct {
	mu sync.RWMutex

	clickedLinks        pairSet
	clickedLinksReverse pairSet

	submittedForms        pairSet // dest stored query-stripped
	submittedFormsReverse pairSet

	historyRequests map[string]bool

	allowedRedirects        pairSet
	allowedRedirectsReverse map[string]string // dest -> origin

	// mappedDestinations is newDest -> set of pre-rewrite destinations,
	// recorded when a companion feature rewrites a request's target.
	mappedDestinations pairSet
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{
		clickedLinks:            pairSet{},
		clickedLinksReverse:     pairSet{},
		submittedForms:          pairSet{},
		submittedFormsReverse:   pairSet{},
		historyRequests:         map[string]bool{},
		allowedRedirects:        pairSet{},
		allowedRedirectsReverse: map[string]string{},
		mappedDestinations:      pairSet{},
	}
}

// RegisterLinkClicked records that the user clicked a link on originURL
// leading to destURL.
func (t *Tracker) RegisterLinkClicked(originURL, destURL string) {
	t.mu.Lock()
	t.clickedLinks.put(originURL, destURL)
	t.clickedLinksReverse.put(destURL, originURL)
	t.mu.Unlock()
}

// IsLinkClicked reports whether a click from originURL to destURL was
// registered.
func (t *Tracker) IsLinkClicked(originURL, destURL string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clickedLinks.has(originURL, destURL)
}

// LinkClickSources returns the origins whose registered clicks lead to
// destURL.
func (t *Tracker) LinkClickSources(destURL string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clickedLinksReverse.keysOf(destURL)
}

// RegisterFormSubmitted records a form submission from originURL to
// destURL. The destination is stored query-stripped because GET form
// values land in the query string.
func (t *Tracker) RegisterFormSubmitted(originURL, destURL string) {
	dest := uriutil.StripQuery(destURL)
	t.mu.Lock()
	t.submittedForms.put(originURL, dest)
	t.submittedFormsReverse.put(dest, originURL)
	t.mu.Unlock()
}

// IsFormSubmitted reports whether a submission from originURL to destURL
// (compared query-stripped) was registered.
func (t *Tracker) IsFormSubmitted(originURL, destURL string) bool {
	dest := uriutil.StripQuery(destURL)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.submittedForms.has(originURL, dest)
}

// FormSubmissionSources returns the origins whose registered submissions
// lead to destURL (compared query-stripped).
func (t *Tracker) FormSubmissionSources(destURL string) []string {
	dest := uriutil.StripQuery(destURL)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.submittedFormsReverse.keysOf(dest)
}

// RegisterHistoryRequest records a back/forward navigation target.
func (t *Tracker) RegisterHistoryRequest(destURL string) {
	t.mu.Lock()
	t.historyRequests[destURL] = true
	t.mu.Unlock()
}

// ConsumeHistoryRequest reports whether destURL was registered as a
// history navigation, removing the entry on a hit. History entries are
// one-shot; the host re-registers on each navigation.
func (t *Tracker) ConsumeHistoryRequest(destURL string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.historyRequests[destURL] {
		return false
	}
	delete(t.historyRequests, destURL)
	return true
}

// RegisterAllowedRedirect records that a redirect from originURL to
// destURL was allowed (by rule or by the user), so a later blocked hop
// can be traced back through it.
func (t *Tracker) RegisterAllowedRedirect(originURL, destURL string) {
	t.mu.Lock()
	t.allowedRedirects.put(originURL, destURL)
	t.allowedRedirectsReverse[destURL] = originURL
	t.mu.Unlock()
}

// IsAllowedRedirect reports whether the redirect pair was previously
// allowed.
func (t *Tracker) IsAllowedRedirect(originURL, destURL string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowedRedirects.has(originURL, destURL)
}

// RedirectSource returns the recorded redirect origin for destURL.
func (t *Tracker) RedirectSource(destURL string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	origin, ok := t.allowedRedirectsReverse[destURL]
	return origin, ok
}

// MapDestinations records that a request originally aimed at
// originalDestURL was rewritten to newDestURL.
func (t *Tracker) MapDestinations(originalDestURL, newDestURL string) {
	t.mu.Lock()
	t.mappedDestinations.put(newDestURL, originalDestURL)
	t.mu.Unlock()
}

// OriginalDestinations returns the pre-rewrite destinations recorded for
// newDestURL.
func (t *Tracker) OriginalDestinations(newDestURL string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mappedDestinations.keysOf(newDestURL)
}
