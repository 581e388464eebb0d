package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/serrors"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type LoginDTO struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type NextQuery struct {
	Next string `form:"next"`
}

type OAuthCallbackQuery struct {
	Code  string `form:"code"`
	State string `form:"state"`
	Next  string `form:"next"`
}

var (
	loginSchema = validation.Shape[LoginDTO]().Messages(map[string]string{
		"email.required":    "Please enter a valid email address",
		"email.email":       "Please enter a valid email address",
		"password.required": "Password is required",
	})
	nextSchema     = validation.Shape[NextQuery]()
	callbackSchema = validation.Shape[OAuthCallbackQuery]()
)

type LoginPageResponse struct {
	GoogleEnabled bool   `json:"googleEnabled"`
	Next          string `json:"next"`
}

func NewLoginController(app application.Application) application.Controller {
	conf := configuration.Use()
	return &LoginController{
		guard:         app.Service(secureroute.Guard{}).(*secureroute.Guard),
		authService:   app.Service(services.AuthService{}).(*services.AuthService),
		stateCookie:   conf.Session.OauthStateKey,
		secureCookies: conf.Session.SecureCookies,
	}
}

type LoginController struct {
	guard         *secureroute.Guard
	authService   *services.AuthService
	stateCookie   string
	secureCookies bool
}

func (c *LoginController) Key() string {
	return constants.LoginPath
}

func (c *LoginController) Register(r *mux.Router) {
	r.Handle(constants.LoginPath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, NextQuery]{
		Permission: secureroute.Public,
		Query:      nextSchema,
		Handle:     c.Get,
	})).Methods(http.MethodGet)
	r.Handle(constants.LoginPath, secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, NextQuery, LoginDTO]{
		Permission: secureroute.Public,
		Query:      nextSchema,
		Form:       loginSchema,
		Handle:     c.Post,
	})).Methods(http.MethodPost)
	r.Handle("/oauth/google", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, NextQuery]{
		Permission: secureroute.Public,
		Query:      nextSchema,
		Handle:     c.GoogleRedirect,
	})).Methods(http.MethodGet)
	r.Handle("/oauth/google/callback", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, OAuthCallbackQuery]{
		Permission: secureroute.Public,
		Query:      callbackSchema,
		Handle:     c.GoogleCallback,
	})).Methods(http.MethodGet)
}

func (c *LoginController) Get(ctx context.Context, args secureroute.Args[secureroute.None, NextQuery, secureroute.None]) secureroute.Response {
	return secureroute.JSON(LoginPageResponse{
		GoogleEnabled: c.authService.GoogleEnabled(),
		Next:          safeNext(args.Query.Data.Next),
	})
}

func (c *LoginController) Post(ctx context.Context, args secureroute.Args[secureroute.None, NextQuery, LoginDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	_, cookie, err := c.authService.SignIn(ctx, dto.Email, dto.Password)
	if err != nil {
		return authFailure(ctx, err, "Failed to sign in. Please try again.")
	}
	return withCookies(secureroute.Redirect(safeNext(args.Query.Data.Next)), cookie)
}

func (c *LoginController) stateCookieFor(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.stateCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// GoogleRedirect starts the OAuth flow. The state is kept in a short lived
// cookie and checked on the way back.
func (c *LoginController) GoogleRedirect(ctx context.Context, args secureroute.Args[secureroute.None, NextQuery, secureroute.None]) secureroute.Response {
	state := uuid.NewString()
	authURL, err := c.authService.GoogleAuthURL(state)
	if err != nil {
		return secureroute.Error(err)
	}
	return withCookies(secureroute.Redirect(authURL), c.stateCookieFor(state, time.Now().Add(10*time.Minute)))
}

func (c *LoginController) GoogleCallback(ctx context.Context, args secureroute.Args[secureroute.None, OAuthCallbackQuery, secureroute.None]) secureroute.Response {
	q := args.Query.Data
	clearState := c.stateCookieFor("", time.Unix(0, 0))
	fail := func(msg string) secureroute.Response {
		params := url.Values{"error": []string{msg}}
		return withCookies(secureroute.Redirect(constants.LoginPath+"?"+params.Encode()), clearState)
	}

	if q.Code == "" {
		return fail("Authorization code not found")
	}
	stored, err := args.Request.Cookie(c.stateCookie)
	if err != nil || q.State == "" || stored.Value != q.State {
		return fail("Invalid OAuth state")
	}
	_, cookie, err := c.authService.GoogleSignIn(ctx, q.Code)
	if err != nil {
		var be *serrors.BaseError
		if errors.As(err, &be) {
			return fail(be.Message)
		}
		composables.UseLoggerOr(ctx, logrus.StandardLogger()).WithError(err).Error("google sign in failed")
		return fail("Failed to sign in with Google")
	}
	return withCookies(secureroute.Redirect(safeNext(q.Next)), clearState, cookie)
}
