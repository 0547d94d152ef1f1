// Package uriutil derives comparison identifiers from URIs and provides
// the small canonicalization helpers the rule and provenance layers share.
package uriutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/perch-io/crossgate/internal/gate/domain"
)

// CanonicalHost returns a host in canonical form: lowercased, trimmed,
// and without trailing dots.
func CanonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	return host
}

// BaseDomain returns the registrable domain (eTLD+1) for a host, falling
// back to the canonical host when the public suffix list cannot place it
// (IP literals, single labels, internal names).
func BaseDomain(host string) string {
	host = CanonicalHost(host)
	// The publicsuffix wildcard default would split IP literals apart.
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return base
}

// Identify reduces a URI to its comparison identifier at the given level.
// It is total: a URI that cannot be parsed, or that has no host, is its
// own identifier, so malformed input never matches a host-keyed rule.
func Identify(raw string, level domain.IdentLevel) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	host := CanonicalHost(u.Hostname())
	if level == domain.LevelBaseDomain {
		return BaseDomain(host)
	}
	return host
}

// Split parses a URI into the reference form the rule layer matches
// against. Unlike Identify it is allowed to fail; the engine maps the
// failure to a closed (deny) decision.
func Split(raw string, level domain.IdentLevel) (domain.URIRef, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return domain.URIRef{}, fmt.Errorf("parsing %q: %w", raw, err)
	}
	host := CanonicalHost(u.Hostname())
	if host == "" {
		return domain.URIRef{}, fmt.Errorf("URI %q has no host", raw)
	}
	ref := domain.URIRef{
		Raw:        raw,
		Scheme:     strings.ToLower(u.Scheme),
		Host:       host,
		Port:       u.Port(),
		Identifier: host,
	}
	if level == domain.LevelBaseDomain {
		ref.Identifier = BaseDomain(host)
	}
	return ref, nil
}

// Scheme returns the lowercased scheme of a URI, or "" when it cannot be
// determined.
func Scheme(raw string) string {
	raw = strings.TrimSpace(raw)
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return ""
	}
	scheme := raw[:i]
	for _, r := range scheme {
		valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '+' || r == '-' || r == '.'
		if !valid {
			return ""
		}
	}
	return strings.ToLower(scheme)
}

// Host returns the canonical host of a URI, or "" when it has none.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return CanonicalHost(u.Hostname())
}

// StripQuery removes the query string and fragment from a URI. Form
// submission provenance is stored query-stripped because the submitted
// values land in the query for GET forms.
func StripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
