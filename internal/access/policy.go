// Package access decides which signed-in identities may use the ledger.
package access

import (
	"strings"
)

// Policy is an email allowlist. An address is allowed when it matches one of
// the exact addresses, or when its domain is one of the allowed domains.
// The zero Policy denies everyone.
type Policy struct {
	domains []string // normalised to "@example.com"
	emails  map[string]struct{}
}

// NewPolicy builds a Policy. Domains may be given as "example.com" or
// "@example.com". Matching is case-insensitive.
func NewPolicy(domains, emails []string) *Policy {
	p := &Policy{emails: make(map[string]struct{}, len(emails))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "@")
		if d == "" {
			continue
		}
		p.domains = append(p.domains, "@"+d)
	}
	for _, e := range emails {
		e = normalise(e)
		if e == "" {
			continue
		}
		p.emails[e] = struct{}{}
	}
	return p
}

// Empty reports whether the policy has no rules at all.
func (p *Policy) Empty() bool {
	return p == nil || (len(p.domains) == 0 && len(p.emails) == 0)
}

// Allows reports whether email may use the system. Only whole addresses and
// whole domains match: "me@example.com.evil" and "me@notexample.com" are
// denied under a rule for "example.com".
func (p *Policy) Allows(email string) bool {
	if p == nil {
		return false
	}
	email = normalise(email)
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return false
	}
	if _, ok := p.emails[email]; ok {
		return true
	}
	domain := email[at:]
	for _, d := range p.domains {
		if domain == d {
			return true
		}
	}
	return false
}

// Rules returns a human-readable description of the policy, for operators.
func (p *Policy) Rules() []string {
	if p == nil {
		return nil
	}
	rules := make([]string, 0, len(p.domains)+len(p.emails))
	for _, d := range p.domains {
		rules = append(rules, "domain "+d)
	}
	for e := range p.emails {
		rules = append(rules, "address "+e)
	}
	return rules
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
