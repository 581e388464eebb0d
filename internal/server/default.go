package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/middleware"
	"github.com/iota-uz/saaskit/pkg/orgcheck"
	"github.com/iota-uz/saaskit/pkg/routing"
	"github.com/iota-uz/saaskit/pkg/serrors"
	"github.com/iota-uz/saaskit/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
	// OrgStore drives organization activation for the app shell; nil disables the gate.
	OrgStore   orgcheck.Store
	Entrypoint string
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	rules, err := routing.LoadAllowlist(conf.RoutingAllowlistPath, options.Entrypoint)
	if err != nil {
		options.Logger.WithError(err).Warn("routing allowlist unavailable, using default route classes")
		rules = nil
	}
	classifier := routing.NewClassifier(rules)

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, middleware.LoggerOptions{
			LogRequestBody: true,
			MaxBodyLength:  512,
			Entrypoint:     options.Entrypoint,
		}),

		middleware.TracedMiddleware("database"),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),

		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.AllowedOrigins()...),

		middleware.TracedMiddleware("opsGuard"),
		middleware.OpsGuard(conf, classifier),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		// only credential endpoints are throttled
		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.AuthRPM,
				Store:             store,
				Classes:           []routing.RouteClass{routing.RouteClassAuthn},
				Classifier:        classifier,
			}),
		)
	}

	middlewares = append(middlewares,
		middleware.TracedMiddleware("requestParams"),
		middleware.RequestParams(),
	)

	if options.OrgStore != nil {
		middlewares = append(middlewares,
			middleware.TracedMiddleware("orgcheck"),
			AppShellGate(classifier, orgcheck.NewFlow(options.OrgStore), options.Logger),
		)
	}

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, NotFound(), MethodNotAllowed()), nil
}

// AppShellGate runs organization activation for page loads in the app shell.
// Actions are left to the route guard, which answers them with status codes
// instead of redirects.
func AppShellGate(classifier *routing.Classifier, flow *orgcheck.Flow, logger logrus.FieldLogger) mux.MiddlewareFunc {
	gate := orgcheck.Middleware(flow, logger)
	return func(next http.Handler) http.Handler {
		gated := gate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || !classifier.ClassifyPath(r.URL.Path).Gated() {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}

func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.Fail(w, http.StatusNotFound, serrors.CodeNotFound, "not found")
	})
}

func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.Fail(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
}
