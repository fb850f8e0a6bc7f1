package userauth

import (
	"strings"

	"github.com/goliatone/go-router"
)

// Requirement is the access level a route demands.
type Requirement int

const (
	// RequireAuthenticated demands a verified bearer token.
	RequireAuthenticated Requirement = iota
	// RequirePublic lets the request through without credentials.
	RequirePublic
)

func (r Requirement) String() string {
	if r == RequirePublic {
		return "public"
	}
	return "authenticated"
}

// AccessRule binds a path pattern to a Requirement. Patterns are either
// exact paths ("/login") or prefix wildcards ("/oauth2/*"). Wildcards match
// the prefix itself and anything nested below it.
type AccessRule struct {
	Pattern     string
	Requirement Requirement
}

// AccessPolicy is an ordered rule list evaluated first match wins. Paths
// that match no rule require authentication.
type AccessPolicy struct {
	rules []AccessRule
}

// NewAccessPolicy builds a policy from rules, evaluated in the given order.
func NewAccessPolicy(rules ...AccessRule) *AccessPolicy {
	return &AccessPolicy{rules: rules}
}

// Public appends a public rule for each pattern.
func (p *AccessPolicy) Public(patterns ...string) *AccessPolicy {
	for _, pattern := range patterns {
		p.rules = append(p.rules, AccessRule{Pattern: pattern, Requirement: RequirePublic})
	}
	return p
}

// Authenticated appends an authenticated rule for each pattern.
func (p *AccessPolicy) Authenticated(patterns ...string) *AccessPolicy {
	for _, pattern := range patterns {
		p.rules = append(p.rules, AccessRule{Pattern: pattern, Requirement: RequireAuthenticated})
	}
	return p
}

// RequirementFor resolves the access level for a request path.
func (p *AccessPolicy) RequirementFor(path string) Requirement {
	if path == "" {
		path = "/"
	}
	for _, rule := range p.rules {
		if matchPattern(rule.Pattern, path) {
			return rule.Requirement
		}
	}
	return RequireAuthenticated
}

// IsPublic reports whether path resolves to a public rule.
func (p *AccessPolicy) IsPublic(path string) bool {
	return p.RequirementFor(path) == RequirePublic
}

// Filter adapts the policy to the middleware filter hook: returning true
// skips token verification for the request.
func (p *AccessPolicy) Filter() func(router.Context) bool {
	return func(c router.Context) bool {
		return p.IsPublic(c.Path())
	}
}

func matchPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if prefix == "" {
			return true
		}
		if path == prefix {
			return true
		}
		return strings.HasPrefix(path, prefix+"/")
	}

	return path == pattern
}
