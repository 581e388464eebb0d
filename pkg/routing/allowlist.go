// Package routing assigns every request path a route class from the YAML
// allowlist in config/routing. Classes drive rate limiting, the ops guard, the
// organization gate and the error body format.
package routing

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

type RouteClass string

const (
	// RouteClassPublic is marketing and other pages reachable without a session.
	RouteClassPublic RouteClass = "public"
	// RouteClassAuthn covers sign in, sign up and password reset; these are rate limited.
	RouteClassAuthn RouteClass = "authn"
	// RouteClassApp is the authenticated app shell, gated by organization activation.
	RouteClassApp RouteClass = "app"
	// RouteClassAdmin is the part of the app shell reserved to global admins.
	RouteClassAdmin RouteClass = "admin"
	RouteClassOps   RouteClass = "ops"
	RouteClassAPI   RouteClass = "api"
)

func (c RouteClass) Valid() bool {
	switch c {
	case RouteClassPublic, RouteClassAuthn, RouteClassApp, RouteClassAdmin, RouteClassOps, RouteClassAPI:
		return true
	}
	return false
}

const (
	allowlistVersion  = 1
	defaultEntrypoint = "server"
	allowlistFile     = "config/routing/allowlist.yaml"
)

var ErrAllowlistNotFound = errors.New("routing allowlist not found")

type AllowlistRule struct {
	Prefix string     `yaml:"prefix"`
	Class  RouteClass `yaml:"class"`
}

type allowlistDoc struct {
	Version     int                        `yaml:"version"`
	Entrypoints map[string][]AllowlistRule `yaml:"entrypoints"`
}

// DefaultAllowlistPath honours ROUTING_ALLOWLIST_PATH, then looks for the
// allowlist in the working directory and each of its parents.
func DefaultAllowlistPath() string {
	if p := strings.TrimSpace(os.Getenv("ROUTING_ALLOWLIST_PATH")); p != "" {
		return p
	}
	rel := filepath.FromSlash(allowlistFile)
	wd, err := os.Getwd()
	if err != nil {
		return rel
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		if filepath.Dir(dir) == dir {
			return rel
		}
	}
}

// LoadAllowlist reads the rules of one entrypoint. An empty path means
// DefaultAllowlistPath and an empty entrypoint means "server".
func LoadAllowlist(path, entrypoint string) ([]AllowlistRule, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultAllowlistPath()
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrAllowlistNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read allowlist")
	}
	return ParseAllowlist(raw, entrypoint)
}

func ParseAllowlist(raw []byte, entrypoint string) ([]AllowlistRule, error) {
	var doc allowlistDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode allowlist")
	}
	if doc.Version != allowlistVersion {
		return nil, errors.Errorf("unsupported allowlist version: %d", doc.Version)
	}

	if entrypoint = strings.TrimSpace(entrypoint); entrypoint == "" {
		entrypoint = defaultEntrypoint
	}
	rules, ok := doc.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.Errorf("entrypoint %q not found in allowlist", entrypoint)
	}

	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r := &rules[i]
		r.Prefix = strings.TrimSpace(r.Prefix)
		switch {
		case r.Prefix == "":
			return nil, errors.Errorf("allowlist rule[%d]: empty prefix", i)
		case !strings.HasPrefix(r.Prefix, "/"):
			return nil, errors.Errorf("allowlist rule[%d]: prefix must start with '/': %q", i, r.Prefix)
		case !r.Class.Valid():
			return nil, errors.Errorf("allowlist rule[%d]: unknown class: %q", i, r.Class)
		}
		if _, dup := seen[r.Prefix]; dup {
			return nil, errors.Errorf("allowlist rule[%d]: duplicate prefix %q", i, r.Prefix)
		}
		seen[r.Prefix] = struct{}{}
	}
	return rules, nil
}
