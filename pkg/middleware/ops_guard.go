package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/routing"
)

type opsGuard struct {
	conf       *configuration.Configuration
	classifier *routing.Classifier
	cidrs      []netip.Prefix
}

// OpsGuard hides ops routes in production from callers that are neither in
// OPS_GUARD_CIDRS nor present OPS_GUARD_TOKEN. Refused callers get a 404.
func OpsGuard(conf *configuration.Configuration, classifier *routing.Classifier) mux.MiddlewareFunc {
	if conf == nil {
		conf = configuration.Use()
	}
	if classifier == nil {
		classifier = routing.NewClassifier(nil)
	}
	g := &opsGuard{
		conf:       conf,
		classifier: classifier,
		cidrs:      parseCIDRs(conf.OpsGuardCIDRs),
	}
	return g.middleware
}

func (g *opsGuard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.conf.GoAppEnvironment != configuration.Production || !g.conf.OpsGuardEnabled ||
			g.classifier.ClassifyPath(r.URL.Path) != routing.RouteClassOps || g.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func (g *opsGuard) authorized(r *http.Request) bool {
	if ip, ok := realIP(r, g.conf.RealIPHeader); ok {
		if addr, err := netip.ParseAddr(ip); err == nil {
			for _, p := range g.cidrs {
				if p.Contains(addr) {
					return true
				}
			}
		}
	}

	token := strings.TrimSpace(g.conf.OpsGuardToken)
	return token != "" && subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(token)) == 1
}

func parseCIDRs(raw string) []netip.Prefix {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' })
	out := make([]netip.Prefix, 0, len(parts))
	for _, part := range parts {
		if p, err := netip.ParsePrefix(part); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Ops-Token")); t != "" {
		return t
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// realIP takes the first hop of a forwarded header, falling back to RemoteAddr.
func realIP(r *http.Request, header string) (string, bool) {
	v := ""
	if header != "" {
		v = r.Header.Get(header)
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
	}
	if v = strings.TrimSpace(v); v == "" {
		v = strings.TrimSpace(r.RemoteAddr)
	}
	if v == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(v); err == nil {
		return host, true
	}
	return v, true
}
