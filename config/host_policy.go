package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// HostPolicy restricts which sites the scraper may render. A host matches an
// entry when it equals it or is a subdomain of it. Disallow wins; an empty
// Allow list permits everything not disallowed.
type HostPolicy struct {
	Allow    []string `mapstructure:"allow"`
	Disallow []string `mapstructure:"disallow"`
}

// Normalize cleans entries and removes duplicates.
func (p HostPolicy) Normalize() HostPolicy {
	p.Allow = sanitizeDomainList(p.Allow)
	p.Disallow = sanitizeDomainList(p.Disallow)
	return p
}

// Validate ensures no host is both allowed and disallowed.
func (p HostPolicy) Validate() error {
	norm := p.Normalize()
	allow := make(map[string]struct{}, len(norm.Allow))
	for _, host := range norm.Allow {
		allow[host] = struct{}{}
	}
	for _, host := range norm.Disallow {
		if _, ok := allow[host]; ok {
			return fmt.Errorf("scraper.hosts conflict: host %q present in both allow and disallow lists", host)
		}
	}
	return nil
}

// Permits reports whether host may be scraped.
func (p HostPolicy) Permits(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	if matchesAny(host, p.Disallow) {
		return false
	}
	return len(p.Allow) == 0 || matchesAny(host, p.Allow)
}

func matchesAny(host string, entries []string) bool {
	for _, e := range entries {
		e = normalizeHost(e)
		if host == e || strings.HasSuffix(host, "."+e) {
			return true
		}
	}
	return false
}

func sanitizeDomainList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		host := normalizeHost(raw)
		if host == "" {
			continue
		}
		seen[host] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return strings.TrimPrefix(u.Hostname(), "www.")
		}
	}
	if h, _, ok := strings.Cut(value, ":"); ok {
		value = h
	}
	return strings.TrimPrefix(value, "www.")
}
