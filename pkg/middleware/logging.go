package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/routing"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodyLength   int

	Entrypoint    string
	AllowlistPath string
	Repanic       bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  true,
		LogResponseBody: false,
		MaxBodyLength:   512,
	}
}

// sensitiveFormKeys are never copied into request logs.
var sensitiveFormKeys = map[string]struct{}{
	"password":        {},
	"confirmPassword": {},
	"token":           {},
	"code":            {},
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
	maxBody       int
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	if room := w.maxBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func getRealIP(r *http.Request, conf *configuration.Configuration) string {
	if ip, ok := realIP(r, conf.RealIPHeader); ok {
		return ip
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request, conf *configuration.Configuration) string {
	if id := r.Header.Get(conf.RequestIDHeader); id != "" {
		return id
	}
	return uuid.New().String()
}

var tracer = otel.Tracer("saaskit-middleware")

func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(
				r.Context(),
				"middleware."+name,
				trace.WithAttributes(
					attribute.String("middleware.name", name),
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
				),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redactedForm(f url.Values) map[string]string {
	out := make(map[string]string, len(f))
	for key, values := range f {
		if _, secret := sensitiveFormKeys[key]; secret {
			out[key] = "[REDACTED]"
			continue
		}
		out[key] = strings.Join(values, ",")
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// WithLogger installs the request scoped logger, opens the root span and turns
// handler panics into a 500 response.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	conf := configuration.Use()
	if opts.AllowlistPath == "" {
		opts.AllowlistPath = conf.RoutingAllowlistPath
	}
	rules, err := routing.LoadAllowlist(opts.AllowlistPath, opts.Entrypoint)
	if err != nil {
		logger.WithError(err).Warn("routing allowlist unavailable, using default route classes")
		rules = nil
	}
	classifier := routing.NewClassifier(rules)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := getRequestID(r, conf)
			ip := getRealIP(r, conf)
			class := classifier.ClassifyPath(r.URL.Path)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id":  requestID,
				"path":        r.URL.Path,
				"method":      r.Method,
				"route-class": string(class),
			})
			fieldsLogger.WithFields(logrus.Fields{
				"host":       r.Host,
				"ip":         ip,
				"user-agent": r.UserAgent(),
			}).Debug("request started")

			if opts.LogRequestBody && r.Method != http.MethodGet && r.Body != nil {
				if err := logRequestBody(r, fieldsLogger, opts.MaxBodyLength); err != nil {
					fieldsLogger.WithError(err).Error("failed to read request-body")
					http.Error(w, "failed to read request-body", http.StatusBadRequest)
					return
				}
			}

			propagator := propagation.TraceContext{}
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(
				ctx,
				"http.request",
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
					attribute.String("http.route_class", string(class)),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("http.request_id", requestID),
					attribute.String("net.peer.ip", ip),
				),
			)
			defer span.End()
			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				fieldsLogger = fieldsLogger.WithField("trace-id", sc.TraceID().String())
			}
			w.Header().Set(httpapi.RequestIDHeader, requestID)

			ctx = context.WithValue(ctx, constants.LoggerKey, fieldsLogger)
			ctx = context.WithValue(ctx, constants.RequestStart, start)

			wrapped := &responseCaptureWriter{ResponseWriter: w, body: &bytes.Buffer{}, maxBody: opts.MaxBodyLength}

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				fieldsLogger.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"ip":       ip,
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")

				if !wrapped.statusWritten {
					if class.WantsJSON() {
						_ = httpapi.WriteError(wrapped, http.StatusInternalServerError, serrors.CodeInternal, "internal server error", map[string]string{
							"request_id": requestID,
						})
					} else {
						http.Error(wrapped, "Internal Server Error", http.StatusInternalServerError)
					}
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			status := wrapped.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
				attribute.Int("http.status_code", status),
			)
			entry := fieldsLogger.WithFields(logrus.Fields{
				"duration":    duration,
				"status-code": status,
			})
			if opts.LogResponseBody && strings.Contains(wrapped.Header().Get("Content-Type"), "application/json") {
				entry = entry.WithField("response-body", wrapped.body.String())
			}
			entry.Info("request completed")
		})
	}
}

// logRequestBody logs JSON and urlencoded payloads and restores r.Body.
// Multipart bodies are left to the handler.
func logRequestBody(r *http.Request, logger *logrus.Entry, maxLen int) error {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	isJSON := strings.Contains(contentType, "application/json")
	isForm := strings.Contains(contentType, "application/x-www-form-urlencoded")
	if !isJSON && !isForm {
		return nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	switch {
	case isForm:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			logger.WithError(err).Debug("unparseable form request-body")
			return nil
		}
		logger.WithField("request-body", redactedForm(values)).Debug("form request-body")
	case isJSON:
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			logger.WithField("request-body", truncate(string(raw), maxLen)).Debug("raw request-body")
			return nil
		}
		for key := range body {
			if _, secret := sensitiveFormKeys[key]; secret {
				body[key] = "[REDACTED]"
			}
		}
		logger.WithField("request-body", body).Debug("JSON request-body")
	}
	return nil
}
