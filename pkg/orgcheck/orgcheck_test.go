package orgcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/saaskit/pkg/identity"
)

type storeStub struct {
	session   *identity.AuthSession
	orgs      []identity.Organization
	listErr   error
	setErr    error
	activated []string
	listCalls int
}

func (s *storeStub) GetSession(context.Context, http.Header) (*identity.AuthSession, error) {
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *storeStub) ListOrganizations(context.Context, http.Header) ([]identity.Organization, error) {
	s.listCalls++
	return s.orgs, s.listErr
}

func (s *storeStub) SetActiveOrganization(_ context.Context, _ http.Header, orgID string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.activated = append(s.activated, orgID)
	s.session.Session.ActiveOrganizationID = orgID
	return nil
}

func signedIn(active string) *identity.AuthSession {
	return &identity.AuthSession{
		User:    identity.User{ID: "u1"},
		Session: identity.Session{ID: "s1", UserID: "u1", ActiveOrganizationID: active},
	}
}

var (
	acme   = identity.Organization{ID: "o1", Name: "Acme", Slug: "acme"}
	globex = identity.Organization{ID: "o2", Name: "Globex", Slug: "globex"}
)

func evaluate(t *testing.T, store *storeStub, path string) Outcome {
	t.Helper()
	out, err := NewFlow(store).Evaluate(context.Background(), httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return out
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		store    *storeStub
		path     string
		want     State
		redirect string
		org      string
	}{
		{name: "no session", store: &storeStub{}, path: "/app", want: Unauthenticated, redirect: "/login"},
		{name: "fresh user", store: &storeStub{session: signedIn("")}, path: "/app", want: NoOrganizations, redirect: "/app/organization/onboarding"},
		{name: "several, none active", store: &storeStub{session: signedIn(""), orgs: []identity.Organization{acme, globex}}, path: "/app", want: MultipleNoActive, redirect: "/app/organization/select"},
		{name: "active not a membership", store: &storeStub{session: signedIn("o9"), orgs: []identity.Organization{acme, globex}}, path: "/app", want: MultipleNoActive, redirect: "/app/organization/select"},
		{name: "explicit", store: &storeStub{session: signedIn("o2"), orgs: []identity.Organization{acme, globex}}, path: "/app/products", want: Resolved, org: "globex"},
		{name: "select page bypasses", store: &storeStub{session: signedIn("")}, path: "/app/organization/select", want: Bypassed, org: "select"},
		{name: "onboarding bypasses", store: &storeStub{session: signedIn("")}, path: "/app/organization/onboarding/join/abc", want: Bypassed, org: "select"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := evaluate(t, tc.store, tc.path)
			assert.Equal(t, tc.want, out.State)
			assert.Equal(t, tc.redirect, out.Redirect)
			if tc.org != "" {
				assert.Equal(t, tc.org, out.Organization.Slug)
			}
		})
	}
}

func TestEvaluate_SingleOrganizationIsActivated(t *testing.T) {
	store := &storeStub{session: signedIn(""), orgs: []identity.Organization{acme}}
	out := evaluate(t, store, "/app")

	assert.Equal(t, Resolved, out.State)
	assert.True(t, out.Activated)
	assert.Empty(t, out.Redirect)
	assert.Equal(t, ActiveOrganization{ID: "o1", Name: "Acme", Slug: "acme"}, out.Organization)
	assert.Equal(t, []string{"o1"}, store.activated)

	again := evaluate(t, store, "/app")
	assert.False(t, again.Activated, "already active organization is not re-activated")
	assert.Len(t, store.activated, 1)
}

func TestEvaluate_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("auth store unavailable")

	_, err := NewFlow(&storeStub{session: signedIn(""), listErr: boom}).
		Evaluate(context.Background(), httptest.NewRequest(http.MethodGet, "/app", nil))
	require.ErrorIs(t, err, boom)

	_, err = NewFlow(&storeStub{session: signedIn(""), orgs: []identity.Organization{acme}, setErr: boom}).
		Evaluate(context.Background(), httptest.NewRequest(http.MethodGet, "/app", nil))
	require.ErrorIs(t, err, boom)
}

func TestMiddleware(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	var seen Outcome
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("redirects terminal states", func(t *testing.T) {
		h := Middleware(NewFlow(&storeStub{session: signedIn("")}), logger)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/app/organization/onboarding", rec.Header().Get("Location"))
	})

	t.Run("passes the organization downstream", func(t *testing.T) {
		h := Middleware(NewFlow(&storeStub{session: signedIn("o1"), orgs: []identity.Organization{acme, globex}}), logger)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "Acme", seen.Organization.Name)
	})

	t.Run("store failure is fatal", func(t *testing.T) {
		h := Middleware(NewFlow(&storeStub{session: signedIn(""), listErr: errors.New("down")}), logger)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "organization activation failed", hook.LastEntry().Message)
	})
}
