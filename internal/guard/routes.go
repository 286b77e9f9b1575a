package guard

import (
	"path"
	"strings"
)

// RouteRule marks the paths matching Pattern as public or protected.
// Patterns support "*" for one segment and a trailing "/**" for any depth.
type RouteRule struct {
	Pattern      string
	RequiresAuth bool
}

// RouteTable resolves a request path to its rule. The first matching rule
// wins. Paths no rule matches are protected.
type RouteTable struct {
	rules []RouteRule
}

func NewRouteTable(rules ...RouteRule) *RouteTable {
	normalized := make([]RouteRule, len(rules))
	for i, r := range rules {
		normalized[i] = RouteRule{Pattern: normalizePath(r.Pattern), RequiresAuth: r.RequiresAuth}
	}
	return &RouteTable{rules: normalized}
}

// Lookup returns the rule for requestPath.
func (t *RouteTable) Lookup(requestPath string) RouteRule {
	requestPath = normalizePath(requestPath)
	for _, r := range t.rules {
		if matchPattern(r.Pattern, requestPath) {
			return r
		}
	}
	return RouteRule{Pattern: requestPath, RequiresAuth: true}
}

// normalizePath ensures a leading slash and no trailing slash
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchPattern(pattern, requestPath string) bool {
	if pattern == requestPath {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if prefix == "" {
			return true
		}
		return requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/")
	}

	if !strings.Contains(pattern, "*") {
		return false
	}

	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(requestPath, "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if part == "*" {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}
