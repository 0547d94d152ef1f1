package domain

import (
	"fmt"
	"strings"
)

// wildcardPrefix marks a host pattern that matches the named host and all
// of its subdomains (apex-inclusive).
const wildcardPrefix = "*."

// Endpoint is one side of a rule: an optional scheme, a host pattern, and
// an optional port. The host pattern is either an exact host or a
// wildcard-subdomain pattern ("*.example.com").
//
// Notes:
//   - Host is expected in canonical form (lowercase, no trailing dot);
//     normalization is handled by the callers that build rules from URIs.
//   - Scheme and Port constrain matching only when non-empty.
type Endpoint struct {
	Scheme string
	Host   string
	Port   string
}

// NewEndpoint constructs an Endpoint and validates its fields.
func NewEndpoint(scheme, host, port string) (Endpoint, error) {
	e := Endpoint{
		Scheme: strings.ToLower(strings.TrimSpace(scheme)),
		Host:   strings.ToLower(strings.TrimSpace(host)),
		Port:   strings.TrimSpace(port),
	}
	if err := e.Validate(); err != nil {
		return Endpoint{}, err
	}
	return e, nil
}

// Validate checks the Endpoint for required fields and token safety.
// The host token must not contain '|' or whitespace because those are
// structural characters in the serialized rule format.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("endpoint host must not be empty")
	}
	if strings.ContainsAny(e.Host, "| \t") {
		return fmt.Errorf("endpoint host %q contains a reserved character", e.Host)
	}
	if strings.ContainsAny(e.Scheme, "| \t:/") {
		return fmt.Errorf("endpoint scheme %q contains a reserved character", e.Scheme)
	}
	for _, r := range e.Port {
		if r < '0' || r > '9' {
			return fmt.Errorf("endpoint port %q is not numeric", e.Port)
		}
	}
	return nil
}

// IsWildcard reports whether the host pattern matches subdomains.
func (e Endpoint) IsWildcard() bool {
	return strings.HasPrefix(e.Host, wildcardPrefix)
}

// MatchesHost reports whether the pattern matches the given host or
// identifier. Exact patterns require equality; wildcard patterns match
// the apex and any subdomain.
func (e Endpoint) MatchesHost(host string) bool {
	if host == "" {
		return false
	}
	if !e.IsWildcard() {
		return e.Host == host
	}
	apex := e.Host[len(wildcardPrefix):]
	return host == apex || strings.HasSuffix(host, "."+apex)
}

// Matches reports whether the endpoint matches a concrete URI reference.
// The host pattern is compared against the reference identifier, so two
// URIs that identify the same are matched the same.
func (e Endpoint) Matches(ref URIRef) bool {
	if !e.MatchesHost(ref.Identifier) && !e.MatchesHost(ref.Host) {
		return false
	}
	if e.Scheme != "" && e.Scheme != ref.Scheme {
		return false
	}
	if e.Port != "" && e.Port != ref.Port {
		return false
	}
	return true
}

// String returns the canonical textual form: [scheme://]host[:port].
func (e Endpoint) String() string {
	var b strings.Builder
	if e.Scheme != "" {
		b.WriteString(e.Scheme)
		b.WriteString("://")
	}
	b.WriteString(e.Host)
	if e.Port != "" {
		b.WriteString(":")
		b.WriteString(e.Port)
	}
	return b.String()
}

// ParseEndpoint parses the canonical textual form produced by String.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	var scheme, port string
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = s[:i]
		s = s[i+len("://"):]
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		port = s[i+1:]
		s = s[:i]
	}
	return NewEndpoint(scheme, s, port)
}
