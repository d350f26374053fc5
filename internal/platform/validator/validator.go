// internal/platform/validator/validator.go

// Package validator centralizes target normalization and validation.
package validator

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var domainRe = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// NormalizeDomain lowercases a domain and strips scheme, path, port and
// trailing dot.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 && !strings.Contains(d[i:], "]") {
		if _, rest := d[:i], d[i+1:]; isDigits(rest) {
			d = d[:i]
		}
	}
	return strings.TrimSuffix(d, ".")
}

// IsDomain reports whether s looks like a syntactically valid domain name.
func IsDomain(s string) bool {
	return domainRe.MatchString(s)
}

// IsApex reports whether the domain is a registrable apex (eTLD+1),
// e.g. "example.com" but not "www.example.com".
func IsApex(domain string) bool {
	apex, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return false
	}
	return apex == domain
}

// Apex returns the registrable apex of a domain, or the input when it
// cannot be derived.
func Apex(domain string) string {
	apex, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return apex
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
