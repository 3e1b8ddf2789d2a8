package domains

import (
	"regexp"
	"strings"
)

var rootDomainPattern = regexp.MustCompile(`([a-z0-9-]+\.[a-z]+)$`)

// ExtractRootDomain reduces a raw domain to its registrable root: lowercase,
// trimmed, "www." stripped, then the trailing label.tld pair. Inputs that
// don't look like a domain at all are returned as-is after cleanup.
//
// Callers normalize with this before inserting into or querying a Matcher;
// the matcher itself never normalizes.
func ExtractRootDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "www.")

	if match := rootDomainPattern.FindString(domain); match != "" {
		return match
	}
	return domain
}
