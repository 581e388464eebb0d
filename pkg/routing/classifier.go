package routing

import (
	"strings"

	"github.com/iota-uz/saaskit/pkg/constants"
)

// fallback classes apply to paths no allowlist rule covers.
var fallback = map[string]RouteClass{
	"/api":            RouteClassAPI,
	constants.AppPath: RouteClassApp,
}

// Classifier resolves a path to the class of its longest matching prefix.
// Prefixes match whole segments only, so /app does not cover /application.
type Classifier struct {
	prefixes map[string]RouteClass
}

func NewClassifier(rules []AllowlistRule) *Classifier {
	prefixes := make(map[string]RouteClass, len(rules))
	for _, rule := range rules {
		p := strings.TrimSpace(rule.Prefix)
		if p == "" {
			continue
		}
		if p != "/" {
			p = strings.TrimSuffix(p, "/")
		}
		prefixes[p] = rule.Class
	}
	return &Classifier{prefixes: prefixes}
}

// MatchAllowlist walks path from its full length down to "/" one segment at a
// time and returns the first class found.
func (c *Classifier) MatchAllowlist(path string) (RouteClass, bool) {
	return lookup(c.prefixes, path)
}

func (c *Classifier) ClassifyPath(path string) RouteClass {
	if class, ok := c.MatchAllowlist(path); ok {
		return class
	}
	if class, ok := lookup(fallback, path); ok {
		return class
	}
	return RouteClassPublic
}

func lookup(prefixes map[string]RouteClass, path string) (RouteClass, bool) {
	if len(prefixes) == 0 || !strings.HasPrefix(path, "/") {
		return "", false
	}
	p := strings.TrimSuffix(path, "/")
	for p != "" {
		if class, ok := prefixes[p]; ok {
			return class, true
		}
		p = p[:strings.LastIndexByte(p, '/')]
	}
	class, ok := prefixes["/"]
	return class, ok
}

// Gated reports whether requests of this class pass through organization activation.
func (c RouteClass) Gated() bool {
	return c == RouteClassApp || c == RouteClassAdmin
}

// WantsJSON reports whether failures on this class are answered with the JSON
// error envelope rather than plain text.
func (c RouteClass) WantsJSON() bool {
	return c != RouteClassPublic && c != RouteClassOps
}

// HasPathPrefixOnBoundary reports whether prefix covers path on a segment boundary.
func HasPathPrefixOnBoundary(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if prefix = strings.TrimSuffix(prefix, "/"); prefix == "" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
