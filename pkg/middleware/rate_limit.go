package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/routing"
)

const (
	rateLimitPrefix = "saaskit:ratelimit"
	CodeRateLimited = "TOO_MANY_REQUESTS"
)

var rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rate_limit_rejections_total",
	Help: "Requests rejected by the rate limiter, by route class.",
}, []string{"class"})

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Store             limiter.Store
	// Classes limits enforcement to these route classes; empty means every request.
	Classes    []routing.RouteClass
	Classifier *routing.Classifier
	// KeyFunc derives the bucket key, the caller ip by default.
	KeyFunc func(r *http.Request) string
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	store, err := redisstore.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: rateLimitPrefix,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create redis limiter store")
	}
	return store, nil
}

func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	if cfg.Period == 0 {
		cfg.Period = time.Minute
	}
	if cfg.Classifier == nil {
		cfg.Classifier = routing.NewClassifier(nil)
	}
	if cfg.KeyFunc == nil {
		conf := configuration.Use()
		cfg.KeyFunc = func(r *http.Request) string {
			return getRealIP(r, conf)
		}
	}
	instance := limiter.New(cfg.Store, limiter.Rate{
		Period: cfg.Period,
		Limit:  int64(cfg.RequestsPerPeriod),
	})

	limited := make(map[routing.RouteClass]bool, len(cfg.Classes))
	for _, c := range cfg.Classes {
		limited[c] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := cfg.Classifier.ClassifyPath(r.URL.Path)
			if len(limited) > 0 && !limited[class] {
				next.ServeHTTP(w, r)
				return
			}

			lctx, err := instance.Get(r.Context(), string(class)+":"+cfg.KeyFunc(r))
			if err != nil {
				// a broken store must not lock users out
				composables.UseLogger(r.Context()).WithError(err).Error("rate limiter store failed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				rateLimitRejections.WithLabelValues(string(class)).Inc()
				_ = httpapi.Fail(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
