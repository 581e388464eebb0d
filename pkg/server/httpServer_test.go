package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/saaskit/pkg/application"
)

type helloController struct{}

func (helloController) Key() string { return "/hello" }

func (helloController) Register(r *mux.Router) {
	r.HandleFunc("/hello", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("hello ", 400))
	}).Methods(http.MethodGet)
}

func tagging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tagged", "1")
		next.ServeHTTP(w, r)
	})
}

func newServer() *HTTPServer {
	app := application.New(&application.ApplicationOptions{})
	app.RegisterControllers(helloController{})
	app.RegisterMiddleware(tagging)
	return NewHTTPServer(app, nil, nil)
}

func TestHTTPServer_NotFoundPassesThroughMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Tagged"))
}

func TestHTTPServer_HandlerGzips(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	newServer().Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "hello hello"))
}
