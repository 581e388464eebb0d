package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/orgcheck"
	"github.com/iota-uz/saaskit/pkg/routing"
)

type noOrgs struct{}

func (noOrgs) GetSession(context.Context, http.Header) (*identity.AuthSession, error) {
	return &identity.AuthSession{User: identity.User{ID: "u1"}, Session: identity.Session{ID: "s1", UserID: "u1"}}, nil
}

func (noOrgs) ListOrganizations(context.Context, http.Header) ([]identity.Organization, error) {
	return nil, nil
}

func (noOrgs) SetActiveOrganization(context.Context, http.Header, string) error { return nil }

func TestAppShellGate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	classifier := routing.NewClassifier([]routing.AllowlistRule{
		{Prefix: "/app", Class: routing.RouteClassApp},
	})
	h := AppShellGate(classifier, orgcheck.NewFlow(noOrgs{}), logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/app/products", http.StatusFound},
		{http.MethodGet, "/app/organization/onboarding", http.StatusNoContent},
		{http.MethodPost, "/app/products/create", http.StatusNoContent},
		{http.MethodGet, "/login", http.StatusNoContent},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.code, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}
