package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/saaskit/modules/auth/presentation/controllers"
	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/modules/auth/testhelpers"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

func newEnv(t *testing.T) *testhelpers.Env {
	t.Helper()
	env := testhelpers.NewEnv(t)
	env.Mount(
		controllers.NewLoginController(env.App),
		controllers.NewSignupController(env.App),
		controllers.NewLogoutController(env.App),
		controllers.NewPasswordController(env.App),
		controllers.NewSessionController(env.App),
	)
	return env
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) secureroute.Result {
	t.Helper()
	var res secureroute.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testhelpers.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func signUp(t *testing.T, env *testhelpers.Env, email string) *http.Cookie {
	t.Helper()
	_, cookie, err := env.Auth.SignUp(context.Background(), services.SignUpDTO{Name: "Ada", Email: email, Password: "correct horse"})
	require.NoError(t, err)
	return cookie
}

func TestSignup(t *testing.T) {
	env := newEnv(t)

	t.Run("creates the account and signs in", func(t *testing.T) {
		rec := env.PostForm("/signup", url.Values{
			"name":     {"Ada"},
			"email":    {"ada@example.com"},
			"password": {"correct horse"},
		}, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/app", rec.Header().Get("Location"))
		require.NotNil(t, sessionCookie(rec))
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := env.PostForm("/signup", url.Values{
			"name":     {"Ada"},
			"email":    {"ada@example.com"},
			"password": {"correct horse"},
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		assert.False(t, res.Success)
		assert.Equal(t, services.ErrEmailTaken.Message, res.Error)
	})

	t.Run("short password", func(t *testing.T) {
		rec := env.PostForm("/signup", url.Values{
			"name":     {"Bob"},
			"email":    {"bob@example.com"},
			"password": {"short"},
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, []string{"Password must be at least 8 characters"}, res.Errors["password"])
	})
}

func TestLogin(t *testing.T) {
	env := newEnv(t)
	signUp(t, env, "ada@example.com")

	t.Run("page is public", func(t *testing.T) {
		rec := env.Get("/login?next=//evil.test", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body controllers.LoginPageResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.False(t, body.GoogleEnabled)
		assert.Equal(t, "/app", body.Next)
	})

	t.Run("valid credentials redirect to next", func(t *testing.T) {
		rec := env.PostForm("/login?next=/app/products", url.Values{
			"email":    {"ada@example.com"},
			"password": {"correct horse"},
		}, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/app/products", rec.Header().Get("Location"))
		assert.NotNil(t, sessionCookie(rec))
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.PostForm("/login", url.Values{
			"email":    {"ada@example.com"},
			"password": {"wrong password"},
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, "Invalid email or password", res.Error)
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := env.PostForm("/login", url.Values{"email": {"nope"}, "password": {"x"}}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, []string{"Please enter a valid email address"}, res.Errors["email"])
	})

	t.Run("google is not configured", func(t *testing.T) {
		rec := env.Get("/oauth/google", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("callback without code", func(t *testing.T) {
		rec := env.Get("/oauth/google/callback", nil)
		require.Equal(t, http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "Authorization code not found", loc.Query().Get("error"))
	})

	t.Run("callback with mismatched state", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth/google/callback?code=abc&state=one", nil)
		req.AddCookie(&http.Cookie{Name: "oauthState", Value: "two"})
		rec := env.Do(req)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("Invalid OAuth state"))
	})
}

func TestSessionEndpoint(t *testing.T) {
	env := newEnv(t)

	rec := env.Get("/api/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session":null}`, rec.Body.String())

	cookie := signUp(t, env, "ada@example.com")
	rec = env.Get("/api/auth/session", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Session struct {
			User struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"session"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ada@example.com", body.Session.User.Email)
}

func TestLogout(t *testing.T) {
	env := newEnv(t)
	cookie := signUp(t, env, "ada@example.com")

	rec := env.PostForm("/logout", url.Values{}, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = env.Get("/api/auth/session", cookie)
	assert.JSONEq(t, `{"session":null}`, rec.Body.String())
}

func TestPasswordReset(t *testing.T) {
	env := newEnv(t)
	signUp(t, env, "ada@example.com")

	for _, email := range []string{"ada@example.com", "ghost@example.com"} {
		rec := env.PostForm("/forgot-password", url.Values{"email": {email}}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		assert.True(t, res.Success)
		assert.Equal(t, "If an account exists for this email, a reset link has been sent", res.Message)
	}
	require.Len(t, env.Mailer.Sent, 1)

	last, _ := env.Mailer.Last()
	link, err := url.Parse(last.Link)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	t.Run("mismatched confirmation", func(t *testing.T) {
		rec := env.PostForm("/forgot-password/validate?token="+token, url.Values{
			"password":        {"new password"},
			"confirmPassword": {"other password"},
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, []string{"Passwords don't match"}, res.Errors["confirmPassword"])
	})

	t.Run("missing token", func(t *testing.T) {
		rec := env.PostForm("/forgot-password/validate", url.Values{
			"password":        {"new password"},
			"confirmPassword": {"new password"},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "Invalid or expired reset token"))
	})

	t.Run("resets once", func(t *testing.T) {
		form := url.Values{"password": {"new password"}, "confirmPassword": {"new password"}}
		rec := env.PostForm("/forgot-password/validate?token="+token, form, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Password reset successfully", decodeResult(t, rec).Message)

		rec = env.PostForm("/forgot-password/validate?token="+token, form, nil)
		res := decodeResult(t, rec)
		assert.False(t, res.Success)
		assert.Equal(t, services.ErrInvalidResetToken.Message, res.Error)

		_, _, err := env.Auth.SignIn(context.Background(), "ada@example.com", "new password")
		assert.NoError(t, err)
	})
}

var _ application.Controller = (*controllers.LoginController)(nil)
