package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	adminservices "github.com/iota-uz/saaskit/modules/admin/services"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type UserParams struct {
	ID string `form:"id" validate:"required"`
}

type SessionParams struct {
	ID        string `form:"id" validate:"required"`
	SessionID string `form:"sessionId" validate:"required"`
}

type UsersQuery struct {
	Page          int    `form:"page" validate:"omitempty,min=1,max=1000000"`
	Limit         int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Search        string `form:"search"`
	SortBy        string `form:"sortBy" validate:"omitempty,oneof=createdAt name email"`
	SortDirection string `form:"sortDirection" validate:"omitempty,oneof=asc desc"`
}

type BanDTO struct {
	BanReason  string `form:"banReason" validate:"required,max=500"`
	BanExpires string `form:"banExpires"`
}

// banExpiryLayouts are tried in order; the last two are what date and
// datetime-local inputs submit.
var banExpiryLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseBanExpiry(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	for _, layout := range banExpiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// SetRolesDTO accepts roles as repeated fields, a comma separated list or both.
type SetRolesDTO struct {
	Roles string `form:"roles" validate:"required"`
}

// rolesOf collects every submitted roles value; form decoding keeps only the last.
func rolesOf(r *http.Request) []string {
	var roles []string
	for _, v := range r.PostForm["roles"] {
		roles = append(roles, identity.SplitRoles(v)...)
	}
	return roles
}

var (
	userParamsSchema    = validation.Shape[UserParams]()
	sessionParamsSchema = validation.Shape[SessionParams]()
	usersQuerySchema    = validation.Shape[UsersQuery]()
	banSchema           = validation.Shape[BanDTO]().Messages(map[string]string{
		"banReason.required": "Ban reason is required",
		"banReason.max":      "Ban reason is too long",
	}).Refine(func(dto *BanDTO, errs validation.FieldErrors) {
		expires, ok := parseBanExpiry(dto.BanExpires)
		switch {
		case !ok:
			errs.Add("banExpires", "Invalid date")
		case expires != nil && !expires.After(time.Now()):
			errs.Add("banExpires", "Ban expiration date must be in the future")
		}
	})
	setRolesSchema = validation.Shape[SetRolesDTO]().Messages(map[string]string{
		"roles.required": "At least one role is required",
	})
)

// UserRow is a user with the stored role list split out.
type UserRow struct {
	identity.User
	Roles []string `json:"roles"`
}

func rowOf(u identity.User) UserRow {
	return UserRow{User: u, Roles: identity.SplitRoles(u.Role)}
}

type UsersResponse struct {
	Users         []UserRow `json:"users"`
	Total         int       `json:"total"`
	Page          int       `json:"page"`
	Limit         int       `json:"limit"`
	SortBy        string    `json:"sortBy"`
	SortDirection string    `json:"sortDirection"`
}

type UserDetailResponse struct {
	User     UserRow            `json:"user"`
	Sessions []identity.Session `json:"sessions"`
}

func NewUsersController(app application.Application) application.Controller {
	return &UsersController{
		guard:          app.Service(secureroute.Guard{}).(*secureroute.Guard),
		userService:    app.Service(authservices.UserService{}).(*authservices.UserService),
		sessionService: app.Service(authservices.SessionService{}).(*authservices.SessionService),
		directory:      app.Service(adminservices.UserDirectory{}).(*adminservices.UserDirectory),
		basePath:       "/app/admin/users",
	}
}

type UsersController struct {
	guard          *secureroute.Guard
	userService    *authservices.UserService
	sessionService *authservices.SessionService
	directory      *adminservices.UserDirectory
	basePath       string
}

func (c *UsersController) Key() string {
	return c.basePath
}

// Every admin route needs "manage User".
var manageUsers = secureroute.Require(ability.Manage, ability.UserType)

func (c *UsersController) Register(r *mux.Router) {
	r.Handle(c.basePath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, UsersQuery]{
		Permission: manageUsers,
		Query:      usersQuerySchema,
		Handle:     c.List,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/{id}", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[UserParams, secureroute.None]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Handle:     c.Detail,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/{id}/ban", secureroute.NewAction(c.guard, secureroute.ActionConfig[UserParams, secureroute.None, BanDTO]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Form:       banSchema,
		Handle:     c.Ban,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{id}/unban", secureroute.NewAction(c.guard, secureroute.ActionConfig[UserParams, secureroute.None, secureroute.None]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Handle:     c.Unban,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{id}/set-role", secureroute.NewAction(c.guard, secureroute.ActionConfig[UserParams, secureroute.None, SetRolesDTO]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Form:       setRolesSchema,
		Handle:     c.SetRoles,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{id}/revoke-all", secureroute.NewAction(c.guard, secureroute.ActionConfig[UserParams, secureroute.None, secureroute.None]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Handle:     c.RevokeAll,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{id}/revoke/{sessionId}", secureroute.NewAction(c.guard, secureroute.ActionConfig[SessionParams, secureroute.None, secureroute.None]{
		Permission: manageUsers,
		Params:     sessionParamsSchema,
		Handle:     c.Revoke,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{id}/delete", secureroute.NewAction(c.guard, secureroute.ActionConfig[UserParams, secureroute.None, secureroute.None]{
		Permission: manageUsers,
		Params:     userParamsSchema,
		Handle:     c.Delete,
	})).Methods(http.MethodPost)
}

func (c *UsersController) List(ctx context.Context, args secureroute.Args[secureroute.None, UsersQuery, secureroute.None]) secureroute.Response {
	q := *args.Query.Data
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.SortBy == "" {
		q.SortBy = adminservices.SortCreatedAt
	}
	if q.SortDirection == "" {
		q.SortDirection = "desc"
	}
	page, err := c.directory.List(ctx, adminservices.UserListParams{
		Search:        q.Search,
		SortBy:        q.SortBy,
		SortDirection: q.SortDirection,
		Page:          q.Page,
		Limit:         q.Limit,
	})
	if err != nil {
		return secureroute.Error(err)
	}
	rows := make([]UserRow, 0, len(page.Users))
	for _, u := range page.Users {
		rows = append(rows, rowOf(u))
	}
	return secureroute.JSON(UsersResponse{
		Users:         rows,
		Total:         page.Total,
		Page:          q.Page,
		Limit:         q.Limit,
		SortBy:        q.SortBy,
		SortDirection: q.SortDirection,
	})
}

func (c *UsersController) Detail(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, secureroute.None]) secureroute.Response {
	detail, err := c.directory.Detail(ctx, args.Params.Data.ID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(UserDetailResponse{User: rowOf(*detail.User), Sessions: detail.Sessions})
}

func (c *UsersController) Ban(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, BanDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	expires, _ := parseBanExpiry(dto.BanExpires)
	err := c.userService.Ban(ctx, args.Identity.User.ID, args.Params.Data.ID, authservices.BanDTO{
		Reason:    dto.BanReason,
		ExpiresAt: expires,
	})
	if err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to ban user")
	}
	return secureroute.Success("User banned successfully")
}

func (c *UsersController) Unban(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, secureroute.None]) secureroute.Response {
	if err := c.userService.Unban(ctx, args.Params.Data.ID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to unban user")
	}
	return secureroute.Success("User unbanned successfully")
}

func (c *UsersController) SetRoles(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, SetRolesDTO]) secureroute.Response {
	if _, bad := secureroute.FormData(args.Form); bad != nil {
		return *bad
	}
	if err := c.userService.SetRoles(ctx, args.Identity.User.ID, args.Params.Data.ID, rolesOf(args.Request)); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to update user roles")
	}
	return secureroute.Success("User roles updated successfully")
}

func (c *UsersController) RevokeAll(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, secureroute.None]) secureroute.Response {
	if _, err := c.sessionService.RevokeUserSessions(ctx, args.Params.Data.ID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to revoke sessions")
	}
	return secureroute.Success("All sessions revoked successfully")
}

func (c *UsersController) Revoke(ctx context.Context, args secureroute.Args[SessionParams, secureroute.None, secureroute.None]) secureroute.Response {
	p := args.Params.Data
	if err := c.sessionService.RevokeSession(ctx, p.ID, p.SessionID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to revoke session")
	}
	return secureroute.Success("Session revoked successfully")
}

func (c *UsersController) Delete(ctx context.Context, args secureroute.Args[UserParams, secureroute.None, secureroute.None]) secureroute.Response {
	id := args.Params.Data.ID
	if id == args.Identity.User.ID {
		return secureroute.Failure(authservices.ErrSelfAction.Message)
	}
	if err := c.userService.Delete(ctx, id); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to delete user")
	}
	return secureroute.Success("User deleted successfully")
}
