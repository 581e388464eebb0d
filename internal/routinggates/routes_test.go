package routinggates

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalserver "github.com/iota-uz/saaskit/internal/server"
	"github.com/iota-uz/saaskit/modules/admin"
	"github.com/iota-uz/saaskit/modules/auth"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/modules/dashboard"
	"github.com/iota-uz/saaskit/modules/marketing"
	"github.com/iota-uz/saaskit/modules/organization"
	"github.com/iota-uz/saaskit/modules/products"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/metrics"
	"github.com/iota-uz/saaskit/pkg/routing"
	pkgserver "github.com/iota-uz/saaskit/pkg/server"
)

// buildServer assembles the server the way cmd/server does, minus the
// database. Requests without a session cookie never reach the stores.
func buildServer(t *testing.T) *pkgserver.HTTPServer {
	t.Helper()
	t.Setenv("ROUTING_ALLOWLIST_PATH", routing.DefaultAllowlistPath())

	logger, _ := test.NewNullLogger()
	grants, err := authz.NewService(authz.Config{Logger: logger})
	require.NoError(t, err)

	app := application.New(&application.ApplicationOptions{Logger: logger})
	require.NoError(t, application.Load(app,
		auth.NewModule(&auth.ModuleOptions{Abilities: ability.NewBuilder(grants, ability.WithLogger(logger))}),
		organization.NewModule(),
		products.NewModule(),
		admin.NewModule(),
		dashboard.NewModule(),
		marketing.NewModule(),
	))
	app.RegisterControllers(
		metrics.NewHealthController(nil),
		metrics.NewPrometheusController(""),
	)

	conf := configuration.Use()
	srv, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		OrgStore:      app.Service(authservices.SessionService{}).(*authservices.SessionService),
		Entrypoint:    "server",
	})
	require.NoError(t, err)
	return srv
}

func collectRoutePaths(t *testing.T, router *mux.Router) []string {
	t.Helper()

	seen := map[string]bool{}
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if p, err := route.GetPathTemplate(); err == nil && strings.TrimSpace(p) != "" {
			seen[p] = true
		}
		return nil
	})
	require.NoError(t, err)

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func TestRoutes_EveryRouteHasTheExpectedClass(t *testing.T) {
	rules, err := routing.LoadAllowlist("", "server")
	require.NoError(t, err)
	classifier := routing.NewClassifier(rules)

	paths := collectRoutePaths(t, buildServer(t).Router())
	require.NotEmpty(t, paths)

	for _, p := range paths {
		class := classifier.ClassifyPath(p)
		switch {
		case routing.HasPathPrefixOnBoundary(p, "/app/admin"):
			assert.Equal(t, routing.RouteClassAdmin, class, p)
		case routing.HasPathPrefixOnBoundary(p, "/app"):
			assert.Equal(t, routing.RouteClassApp, class, p)
		case routing.HasPathPrefixOnBoundary(p, "/login"),
			routing.HasPathPrefixOnBoundary(p, "/signup"),
			routing.HasPathPrefixOnBoundary(p, "/forgot-password"),
			routing.HasPathPrefixOnBoundary(p, "/oauth"):
			assert.Equal(t, routing.RouteClassAuthn, class, p)
		case routing.HasPathPrefixOnBoundary(p, "/health"),
			routing.HasPathPrefixOnBoundary(p, "/debug"):
			assert.Equal(t, routing.RouteClassOps, class, p)
		}
		assert.False(t, routing.HasPathPrefixOnBoundary(p, "/_dev") || routing.HasPathPrefixOnBoundary(p, "/__test__"),
			"dev route registered: %s", p)
	}

	for _, want := range []string{
		"/", "/login", "/signup", "/logout", "/forgot-password", "/api/auth/session",
		"/app", "/app/products", "/app/products/{productId}", "/app/organization", "/app/organization/members",
		"/app/organization/select", "/app/organization/onboarding", "/app/admin/users", "/app/profile",
		"/health",
	} {
		assert.Contains(t, paths, want)
	}
}

func TestRoutes_UnauthenticatedAccess(t *testing.T) {
	router := buildServer(t).Router()
	serve := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	for _, p := range []string{"/app", "/app/products", "/app/admin/users", "/app/organization/select"} {
		rec := serve(http.MethodGet, p)
		assert.Equal(t, http.StatusFound, rec.Code, p)
		assert.Equal(t, "/login", rec.Header().Get("Location"), p)
	}

	for _, p := range []string{"/app/products/create", "/app/organization/update", "/app/admin/users/u1/ban"} {
		assert.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, p).Code, p)
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/login").Code)

	rec := serve(http.MethodGet, "/api/auth/session")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestRoutes_UnknownPathIsJSON404(t *testing.T) {
	rec := httptest.NewRecorder()
	buildServer(t).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__nonexistent__", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
