package domain

// URIRef is a parsed, canonicalized view of a URI as the rule layer sees
// it. Identifier is the comparison key derived at the active
// identification level; Host is the full canonical host, kept alongside
// so wildcard host patterns can match either form.
type URIRef struct {
	Raw        string
	Scheme     string
	Host       string
	Port       string
	Identifier string
}
