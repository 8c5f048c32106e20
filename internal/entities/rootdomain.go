package entities

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RootDomain returns the registrable (public-suffix-aware) domain of a host,
// or "" when none can be derived: IP literals, bare labels, and hosts that
// are themselves a public suffix all yield "".
func RootDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return root
}
