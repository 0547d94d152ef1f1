package engine

// traceBlockedRedirect walks a freshly blocked redirect hop backward
// through the allowed-redirect map to whatever originally set the chain
// in motion, then re-attributes link-click and form-submission
// provenance from that source to the blocked destination. The walk is
// bounded because redirect loops are an expected adversarial case.
func (e *Engine) traceBlockedRedirect(originURI, destURI string) {
	initial := originURI
	walked := 0
	for ; walked < e.maxRedirectWalk; walked++ {
		src, ok := e.provenance.RedirectSource(initial)
		if !ok {
			break
		}
		initial = src
	}
	if walked == e.maxRedirectWalk {
		e.logger.Warn(map[string]any{
			"origin": originURI,
			"dest":   destURI,
			"walked": walked,
		}, "redirect chain walk hit iteration bound; treating partial result as final")
	}

	// Synthetic provenance: the user's click or submission at the chain
	// source ultimately led to the blocked destination. The merge ledger
	// entries use the redirect-insert flag so recording them does not
	// cascade-clear what the intermediate page already accumulated.
	for _, src := range e.provenance.LinkClickSources(initial) {
		e.provenance.RegisterLinkClicked(src, destURI)
		e.ledger.RecordAllowed(src, initial, true)
	}
	for _, src := range e.provenance.FormSubmissionSources(initial) {
		e.provenance.RegisterFormSubmitted(src, destURI)
		e.ledger.RecordAllowed(src, initial, true)
	}
}
