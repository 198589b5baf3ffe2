package downloads

import "strings"

// DomainPattern filters download origins by host. A plain pattern matches the
// host exactly; the wildcard form "*.domain.tld" matches the domain apex and
// any subdomain of it. Comparison is case-sensitive.
type DomainPattern string

// Matches reports whether the host satisfies the pattern. A wildcard pattern
// only matches on a dot boundary, so "*.sentry.io" accepts "sentry.io" and
// "a.b.sentry.io" but never "notsentry.io".
func (p DomainPattern) Matches(host string) bool {
	if suffix, ok := strings.CutPrefix(string(p), "*."); ok {
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return host == string(p)
}
