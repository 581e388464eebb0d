package secureroute

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/httpapi"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/serrors"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type resolverStub struct {
	ident        *identity.Identity
	err          error
	calls        int
	sessionCalls int
}

func (s *resolverStub) Resolve(context.Context, *http.Request) (*identity.Identity, error) {
	s.calls++
	return s.ident, s.err
}

func (s *resolverStub) ResolveSession(context.Context, *http.Request) (*identity.Identity, error) {
	s.sessionCalls++
	return s.ident, s.err
}

func member(userID, orgRole string) *identity.Identity {
	return &identity.Identity{
		User:         identity.User{ID: userID, Role: identity.RoleUser},
		Session:      identity.Session{ID: "s1", UserID: userID, ActiveOrganizationID: "o1"},
		Member:       identity.Membership{OrganizationID: "o1", UserID: userID, Role: orgRole},
		Organization: identity.OrganizationRef{ID: "o1", Role: orgRole},
	}
}

func newGuard(t *testing.T, resolver IdentityResolver) (*Guard, *logtest.Hook) {
	t.Helper()
	svc, err := authz.NewService(authz.Config{})
	require.NoError(t, err)
	logger, hook := logtest.NewNullLogger()
	return NewGuard(resolver, ability.NewBuilder(svc), WithFallbackLogger(logger)), hook
}

type productParams struct {
	ProductID string `form:"productId" validate:"required,uuid"`
}

type nameForm struct {
	Name string `form:"name" validate:"required,max=100"`
}

func serve(h http.Handler, pattern, method, target string, body url.Values) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.Handle(pattern, h).Methods(method)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpapi.ErrorEnvelope {
	t.Helper()
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestPublicRouteSkipsIdentity(t *testing.T) {
	resolver := &resolverStub{err: identity.ErrUnauthenticated}
	g, _ := newGuard(t, resolver)
	invoked := false
	h := NewLoader(g, LoaderConfig[None, None]{
		Permission: Public,
		Handle: func(_ context.Context, args Args[None, None, None]) Response {
			invoked = true
			assert.Nil(t, args.Identity)
			assert.Nil(t, args.Params.Data)
			return JSON(map[string]string{"hello": "world"})
		},
	})

	rec := serve(h, "/", http.MethodGet, "/", nil)
	assert.True(t, invoked)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, resolver.calls+resolver.sessionCalls)
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestRequireAllowsAndExposesIdentity(t *testing.T) {
	resolver := &resolverStub{ident: member("u1", identity.OrgRoleAdmin)}
	g, _ := newGuard(t, resolver)
	h := NewLoader(g, LoaderConfig[None, None]{
		Permission: Require(ability.Read, ability.MemberType),
		Handle: func(ctx context.Context, args Args[None, None, None]) Response {
			ident, ok := identity.FromContext(ctx)
			require.True(t, ok)
			assert.Same(t, args.Identity, ident)
			return JSON(Result{Success: true})
		},
	})

	rec := serve(h, "/members", http.MethodGet, "/members", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resolver.calls)
}

func TestForbiddenNeverInvokesAndIsAudited(t *testing.T) {
	g, hook := newGuard(t, &resolverStub{ident: member("u1", identity.OrgRoleMember)})
	h := NewAction(g, ActionConfig[None, None, None]{
		Permission: Require(ability.Delete, ability.OrganizationType),
		Handle: func(context.Context, Args[None, None, None]) Response {
			t.Fatal("business function must not run")
			return Response{}
		},
	})

	rec := serve(h, "/organization/delete", http.MethodPost, "/organization/delete", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, serrors.CodeForbidden, env.Code)
	assert.Equal(t, "User does not have permission to perform this action", env.Message)
	assert.NotContains(t, rec.Body.String(), "Organization")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "permission denied", entry.Message)
	assert.Equal(t, "u1", entry.Data["userId"])
	assert.Equal(t, "delete", entry.Data["action"])
	assert.Equal(t, "member", entry.Data["organizationRole"])
}

func TestIdentityFailures(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		kind       kind
		wantStatus int
		wantLoc    string
		wantCode   string
	}{
		{name: "loader unauthenticated", err: identity.ErrUnauthenticated, kind: kindLoader, wantStatus: http.StatusFound, wantLoc: "/login"},
		{name: "action unauthenticated", err: identity.ErrUnauthenticated, kind: kindAction, wantStatus: http.StatusUnauthorized, wantCode: serrors.CodeUnauthenticated},
		{name: "no active organization", err: identity.ErrNoActiveOrganization, kind: kindLoader, wantStatus: http.StatusFound, wantLoc: "/app/organization/select"},
		{name: "not a member", err: identity.ErrNotAMember, kind: kindAction, wantStatus: http.StatusBadRequest, wantCode: serrors.CodeNotAMember},
		{name: "store failure", err: errors.New("db down"), kind: kindLoader, wantStatus: http.StatusInternalServerError, wantCode: serrors.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, _ := newGuard(t, &resolverStub{err: tc.err})
			fail := func(context.Context, Args[None, None, None]) Response {
				t.Fatal("business function must not run")
				return Response{}
			}
			var (
				h      http.Handler
				method = http.MethodGet
			)
			if tc.kind == kindAction {
				method = http.MethodPost
				h = NewAction(g, ActionConfig[None, None, None]{Permission: LoggedIn, Handle: fail})
			} else {
				h = NewLoader(g, LoaderConfig[None, None]{Permission: LoggedIn, Handle: fail})
			}

			rec := serve(h, "/app", method, "/app", nil)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantLoc != "" {
				assert.Equal(t, tc.wantLoc, rec.Header().Get("Location"))
			}
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, decodeEnvelope(t, rec).Code)
			}
		})
	}
}

func TestParamValidationFailsClosed(t *testing.T) {
	resolver := &resolverStub{ident: member("u1", identity.OrgRoleMember)}
	g, _ := newGuard(t, resolver)
	h := NewLoader(g, LoaderConfig[productParams, None]{
		Permission: Require(ability.Read, ability.ProductType),
		Params:     validation.Shape[productParams](),
		Handle: func(context.Context, Args[productParams, None, None]) Response {
			t.Fatal("business function must not run")
			return Response{}
		},
	})

	rec := serve(h, "/products/{productId}", http.MethodGet, "/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, serrors.CodeValidationFailed, env.Code)
	assert.Contains(t, env.Message, "productId")
}

func TestParamValidationDoesNotLeakToAnonymous(t *testing.T) {
	g, _ := newGuard(t, &resolverStub{err: identity.ErrUnauthenticated})
	h := NewLoader(g, LoaderConfig[productParams, None]{
		Permission: Require(ability.Read, ability.ProductType),
		Params:     validation.Shape[productParams](),
		Handle: func(context.Context, Args[productParams, None, None]) Response {
			return Response{}
		},
	})

	rec := serve(h, "/products/{productId}", http.MethodGet, "/products/bad", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestParamsReachHandler(t *testing.T) {
	g, _ := newGuard(t, &resolverStub{ident: member("u1", identity.OrgRoleMember)})
	id := "0b6f3f4e-8d0a-4f5e-9a51-4f3a2d6b1c11"
	h := NewLoader(g, LoaderConfig[productParams, None]{
		Permission: Require(ability.Read, ability.ProductType),
		Params:     validation.Shape[productParams](),
		Handle: func(_ context.Context, args Args[productParams, None, None]) Response {
			require.True(t, args.Params.OK())
			return JSON(map[string]string{"id": args.Params.Data.ProductID})
		},
	})

	rec := serve(h, "/products/{productId}", http.MethodGet, "/products/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+id+`"}`, rec.Body.String())
}

func TestFormErrorsReachHandler(t *testing.T) {
	g, _ := newGuard(t, &resolverStub{ident: member("u1", identity.OrgRoleMember)})
	h := NewAction(g, ActionConfig[None, None, nameForm]{
		Permission: Require(ability.Create, ability.ProductType),
		Form:       validation.Shape[nameForm](),
		Handle: func(_ context.Context, args Args[None, None, nameForm]) Response {
			form, failed := FormData(args.Form)
			if failed != nil {
				return *failed
			}
			return Success("created " + form.Name)
		},
	})

	rec := serve(h, "/products", http.MethodPost, "/products", url.Values{"name": {""}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, "name")

	rec = serve(h, "/products", http.MethodPost, "/products", url.Values{"name": {"Lamp"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"created Lamp"}`, rec.Body.String())
}

func TestBusinessErrorsAndRedirects(t *testing.T) {
	g, _ := newGuard(t, &resolverStub{ident: member("u1", identity.OrgRoleMember)})

	notFound := NewLoader(g, LoaderConfig[None, None]{
		Permission: LoggedIn,
		Handle: func(context.Context, Args[None, None, None]) Response {
			return Error(serrors.NewError(serrors.CodeNotFound, "Product not found", "Errors.NotFound"))
		},
	})
	rec := serve(notFound, "/p", http.MethodGet, "/p", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeEnvelope(t, rec).Message)

	redirect := NewAction(g, ActionConfig[None, None, None]{
		Permission: LoggedIn,
		Handle: func(context.Context, Args[None, None, None]) Response {
			return Redirect("/app").WithCookie(&http.Cookie{Name: "sid", Value: "x"})
		},
	})
	rec = serve(redirect, "/p", http.MethodPost, "/p", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/app", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "sid=x")

	failure := NewAction(g, ActionConfig[None, None, None]{
		Permission: LoggedIn,
		Handle: func(context.Context, Args[None, None, None]) Response {
			return Failure("Invalid role")
		},
	})
	rec = serve(failure, "/p", http.MethodPost, "/p", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid role"}`, rec.Body.String())
}

func TestSignedInUsesSessionOnlyResolution(t *testing.T) {
	resolver := &resolverStub{ident: &identity.Identity{User: identity.User{ID: "u1"}}}
	g, _ := newGuard(t, resolver)
	h := NewLoader(g, LoaderConfig[None, None]{
		Permission: SignedIn,
		Handle: func(_ context.Context, args Args[None, None, None]) Response {
			return JSON(map[string]string{"user": args.Identity.User.ID})
		},
	})
	rec := serve(h, "/select", http.MethodGet, "/select", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 1, resolver.sessionCalls)

	accept := NewAction(g, ActionConfig[None, None, None]{
		Permission: Require(ability.Accept, ability.InvitationType).WithoutOrganization(),
		Handle: func(context.Context, Args[None, None, None]) Response {
			return Redirect("/app")
		},
	})
	rec = serve(accept, "/join", http.MethodPost, "/join", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 2, resolver.sessionCalls)
}

func TestGuardEnsureCanLogsInstanceRefusals(t *testing.T) {
	g, hook := newGuard(t, &resolverStub{})
	ident := member("u1", identity.OrgRoleMember)

	err := g.EnsureCan(context.Background(), ident, ability.Edit, ability.Product{ID: "p2", UserID: "u2"})
	require.ErrorIs(t, err, ability.ErrForbidden)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Product(id=p2)", hook.LastEntry().Data["subject"])

	require.NoError(t, g.EnsureCan(context.Background(), ident, ability.Edit, ability.Product{ID: "p1", UserID: "u1"}))
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "public", Public.String())
	assert.Equal(t, "loggedIn", LoggedIn.String())
	assert.Equal(t, "read Product", Require(ability.Read, ability.ProductType).String())
}
