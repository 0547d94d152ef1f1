package domain

import (
	"fmt"
	"strings"
)

// IdentLevel selects the granularity at which URIs are reduced to
// comparison identifiers.
//
// host        - the full host ("www.example.com")
// base-domain - the registrable domain, eTLD+1 ("example.com")
type IdentLevel uint8

const (
	// LevelHost identifies URIs by their full host.
	LevelHost IdentLevel = iota
	// LevelBaseDomain identifies URIs by their registrable base domain.
	LevelBaseDomain
)

// String returns a stable string representation of the level.
func (l IdentLevel) String() string {
	switch l {
	case LevelHost:
		return "host"
	case LevelBaseDomain:
		return "base-domain"
	default:
		return fmt.Sprintf("IdentLevel(%d)", l)
	}
}

// ParseIdentLevel converts a string into an IdentLevel.
// Accepts: "host", "base-domain" (case-insensitive).
func ParseIdentLevel(s string) (IdentLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host":
		return LevelHost, nil
	case "base-domain":
		return LevelBaseDomain, nil
	default:
		return 0, fmt.Errorf("unsupported IdentLevel: %q", s)
	}
}
