package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

func NewLogoutController(app application.Application) application.Controller {
	return &LogoutController{
		guard:          app.Service(secureroute.Guard{}).(*secureroute.Guard),
		sessionService: app.Service(services.SessionService{}).(*services.SessionService),
	}
}

type LogoutController struct {
	guard          *secureroute.Guard
	sessionService *services.SessionService
}

func (c *LogoutController) Key() string {
	return "/logout"
}

func (c *LogoutController) Register(r *mux.Router) {
	r.Handle("/logout", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, secureroute.None]{
		Permission: secureroute.Public,
		Handle:     c.Logout,
	})).Methods(http.MethodGet, http.MethodPost)
}

// Logout deletes the session named by the cookie and clears the cookie. It
// succeeds when there is no session.
func (c *LogoutController) Logout(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	if err := c.sessionService.SignOut(ctx, args.Request.Header); err != nil {
		return secureroute.Error(err)
	}
	return secureroute.Redirect(constants.LoginPath).WithCookie(c.sessionService.ClearCookie())
}
