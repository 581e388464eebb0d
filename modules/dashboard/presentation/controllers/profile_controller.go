package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

const (
	profilePath = "/app/profile"
	GoodbyePath = "/goodbye"
)

type ProfileUpdateDTO struct {
	Name string `form:"name" validate:"required,max=100"`
}

type RevokeSessionDTO struct {
	SessionID string `form:"sessionId" validate:"required"`
}

var (
	profileSchema = validation.Shape[ProfileUpdateDTO]().Messages(map[string]string{
		"name.required": "Name is required",
		"name.max":      "Name is too long",
	})
	revokeSchema = validation.Shape[RevokeSessionDTO]().Messages(map[string]string{
		"sessionId.required": "Session is required",
	})
)

type ProfileUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ProfileSession struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	IsCurrent bool      `json:"isCurrent"`
}

type ProfileResponse struct {
	User     ProfileUser      `json:"user"`
	Sessions []ProfileSession `json:"sessions"`
}

func NewProfileController(app application.Application) application.Controller {
	return &ProfileController{
		guard:          app.Service(secureroute.Guard{}).(*secureroute.Guard),
		userService:    app.Service(authservices.UserService{}).(*authservices.UserService),
		sessionService: app.Service(authservices.SessionService{}).(*authservices.SessionService),
	}
}

// ProfileController lets the signed in user manage their own account.
type ProfileController struct {
	guard          *secureroute.Guard
	userService    *authservices.UserService
	sessionService *authservices.SessionService
}

func (c *ProfileController) Key() string {
	return profilePath
}

func (c *ProfileController) Register(r *mux.Router) {
	r.Handle(profilePath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.LoggedIn,
		Handle:     c.Profile,
	})).Methods(http.MethodGet)

	backToProfile := secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.LoggedIn,
		Handle: func(context.Context, secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
			return secureroute.Redirect(profilePath)
		},
	})
	r.Handle(profilePath+"/update", backToProfile).Methods(http.MethodGet)
	r.Handle(profilePath+"/revoke-session", backToProfile).Methods(http.MethodGet)

	r.Handle(profilePath+"/update", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, ProfileUpdateDTO]{
		Permission: secureroute.LoggedIn,
		Form:       profileSchema,
		Handle:     c.Update,
	})).Methods(http.MethodPost)
	r.Handle(profilePath+"/revoke-session", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, RevokeSessionDTO]{
		Permission: secureroute.LoggedIn,
		Form:       revokeSchema,
		Handle:     c.RevokeSession,
	})).Methods(http.MethodPost)
	r.Handle(profilePath+"/delete", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, secureroute.None]{
		Permission: secureroute.LoggedIn,
		Handle:     c.Delete,
	})).Methods(http.MethodPost)
}

func (c *ProfileController) Profile(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	ident := args.Identity
	sessions, err := c.sessionService.ListUserSessions(ctx, ident.User.ID)
	if err != nil {
		return secureroute.Error(err)
	}
	out := make([]ProfileSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, ProfileSession{
			ID:        s.ID,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			IsCurrent: s.ID == ident.Session.ID,
		})
	}
	return secureroute.JSON(ProfileResponse{
		User:     ProfileUser{Name: ident.User.Name, Email: ident.User.Email},
		Sessions: out,
	})
}

func (c *ProfileController) Update(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, ProfileUpdateDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if _, err := c.userService.UpdateName(ctx, args.Identity.User.ID, dto.Name); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to update profile")
	}
	return secureroute.Success("Profile updated successfully")
}

// RevokeSession ends one of the caller's own sessions.
func (c *ProfileController) RevokeSession(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, RevokeSessionDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	err := c.sessionService.RevokeSession(ctx, args.Identity.User.ID, dto.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return secureroute.Failure("Session not found")
	}
	if err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to revoke session")
	}
	return secureroute.Success("Session revoked successfully")
}

// Delete removes the caller's account and signs them out.
func (c *ProfileController) Delete(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	if err := c.userService.Delete(ctx, args.Identity.User.ID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to delete account")
	}
	return secureroute.Redirect(GoodbyePath).WithCookie(c.sessionService.ClearCookie())
}
