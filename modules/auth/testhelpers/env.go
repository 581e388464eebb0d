package testhelpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

const CookieName = "sid"

// Env is an application wired like the auth module registers it, over a Store.
type Env struct {
	Store    *Store
	Mailer   *Mailer
	App      application.Application
	Logger   *logrus.Logger
	Hook     *test.Hook
	Sessions *services.SessionService
	Auth     *services.AuthService
	Users    *services.UserService
	Guard    *secureroute.Guard
	router   *mux.Router
}

func NewEnv(t testing.TB) *Env {
	t.Helper()
	logger, hook := test.NewNullLogger()
	store := NewStore()
	mailer := &Mailer{}

	grants, err := authz.NewService(authz.Config{Logger: logger})
	require.NoError(t, err)
	abilities := ability.NewBuilder(grants, ability.WithLogger(logger))

	sessions := services.NewSessionService(
		store.UserRepository(),
		store.SessionRepository(),
		store.OrganizationRepository(),
		store.MemberRepository(),
		services.CookieOptions{Name: CookieName, SameSite: http.SameSiteLaxMode},
		time.Hour,
		services.WithSessionLogger(logger),
	)
	auth := services.NewAuthService(
		store.UserRepository(),
		store.AccountRepository(),
		store.VerificationRepository(),
		sessions,
		mailer,
		services.AuthServiceOptions{BcryptCost: bcrypt.MinCost, Origin: "http://app.test", Logger: logger, InTx: InTx},
	)
	users := services.NewUserService(store.UserRepository(), sessions, services.WithUserTx(InTx))
	guard := secureroute.NewGuard(identity.NewResolver(sessions, sessions), abilities, secureroute.WithFallbackLogger(logger))

	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterServices(sessions, mailer, auth, users, abilities, guard)

	return &Env{
		Store:    store,
		Mailer:   mailer,
		App:      app,
		Logger:   logger,
		Hook:     hook,
		Sessions: sessions,
		Auth:     auth,
		Users:    users,
		Guard:    guard,
	}
}

// Mount registers controllers on a fresh router.
func (e *Env) Mount(controllers ...application.Controller) {
	e.router = mux.NewRouter()
	for _, c := range controllers {
		c.Register(e.router)
	}
}

func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// Get issues a GET, authenticated with cookie when it is not nil.
func (e *Env) Get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.Do(req)
}

// PostForm issues a urlencoded POST, authenticated with cookie when it is not nil.
func (e *Env) PostForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.Do(req)
}

// User stores a user with the given global role.
func (e *Env) User(t testing.TB, id, role string) identity.User {
	t.Helper()
	u := identity.User{ID: id, Name: id, Email: id + "@example.com", Role: role, CreatedAt: time.Now()}
	e.Store.AddUser(u, "")
	return u
}

// Organization stores an organization and returns it.
func (e *Env) Organization(t testing.TB, id string) identity.Organization {
	t.Helper()
	o := identity.Organization{ID: id, Name: id, Slug: id, CreatedAt: time.Now()}
	e.Store.AddOrganization(o)
	return o
}

// Member stores a membership of userID in orgID and returns its id.
func (e *Env) Member(t testing.TB, orgID, userID, role string) string {
	t.Helper()
	id := "m-" + orgID + "-" + userID
	e.Store.AddMember(identity.Membership{ID: id, OrganizationID: orgID, UserID: userID, Role: role, CreatedAt: time.Now()})
	return id
}

// SignIn opens a session for userID, optionally with an active organization.
func (e *Env) SignIn(t testing.TB, userID, activeOrgID string) *http.Cookie {
	t.Helper()
	sess, cookie, err := e.Sessions.Create(context.Background(), userID)
	require.NoError(t, err)
	if activeOrgID != "" {
		require.NoError(t, e.Sessions.Activate(context.Background(), sess.ID, userID, activeOrgID))
	}
	return cookie
}
