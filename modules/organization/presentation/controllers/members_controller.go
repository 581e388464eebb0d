package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/modules/organization/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type InviteParams struct {
	InviteID string `form:"inviteId" validate:"required"`
}

type MemberParams struct {
	MemberID string `form:"memberId" validate:"required"`
}

type InviteDTO struct {
	Email string `form:"email" validate:"required,email"`
	Role  string `form:"role" validate:"required"`
}

type SetRoleDTO struct {
	Role string `form:"role" validate:"required"`
}

var (
	inviteParamsSchema = validation.Shape[InviteParams]()
	memberParamsSchema = validation.Shape[MemberParams]()
	inviteSchema       = validation.Shape[InviteDTO]().Messages(map[string]string{
		"email.required": "Email is required",
		"email.email":    "Invalid email address",
		"role.required":  "Role is required",
	})
	setRoleSchema = validation.Shape[SetRoleDTO]().Messages(map[string]string{
		"role.required": "Role is required",
	})
)

type MembersResponse struct {
	Members     []domain.MemberView `json:"members"`
	Invitations []domain.Invitation `json:"invitations"`
}

type InvitationResponse struct {
	Invitation *services.InvitationView `json:"invitation"`
}

func NewMembersController(app application.Application) application.Controller {
	return &MembersController{
		guard:               app.Service(secureroute.Guard{}).(*secureroute.Guard),
		organizationService: app.Service(services.OrganizationService{}).(*services.OrganizationService),
		basePath:            "/app/organization/members",
	}
}

type MembersController struct {
	guard               *secureroute.Guard
	organizationService *services.OrganizationService
	basePath            string
}

func (c *MembersController) Key() string {
	return c.basePath
}

func (c *MembersController) Register(r *mux.Router) {
	r.Handle(c.basePath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Read, ability.MemberType),
		Handle:     c.List,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/invite", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, InviteDTO]{
		Permission: secureroute.Require(ability.Create, ability.InvitationType),
		Form:       inviteSchema,
		Handle:     c.Invite,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/invite/{inviteId}/cancel", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[InviteParams, secureroute.None]{
		Permission: secureroute.Require(ability.Cancel, ability.InvitationType),
		Params:     inviteParamsSchema,
		Handle:     c.GetInvitation,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/invite/{inviteId}/cancel", secureroute.NewAction(c.guard, secureroute.ActionConfig[InviteParams, secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Cancel, ability.InvitationType),
		Params:     inviteParamsSchema,
		Handle:     c.CancelInvitation,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{memberId}/remove", secureroute.NewAction(c.guard, secureroute.ActionConfig[MemberParams, secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Remove, ability.MemberType),
		Params:     memberParamsSchema,
		Handle:     c.Remove,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/{memberId}/set-role", secureroute.NewAction(c.guard, secureroute.ActionConfig[MemberParams, secureroute.None, SetRoleDTO]{
		Permission: secureroute.Require(ability.SetRole, ability.MemberType),
		Params:     memberParamsSchema,
		Form:       setRoleSchema,
		Handle:     c.SetRole,
	})).Methods(http.MethodPost)
}

func (c *MembersController) List(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	members, invitations, err := c.organizationService.Members(ctx, args.Identity.Organization.ID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(MembersResponse{Members: members, Invitations: invitations})
}

func (c *MembersController) Invite(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, InviteDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if _, err := c.organizationService.Invite(ctx, args.Identity, dto.Email, dto.Role); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to invite member")
	}
	return secureroute.Success("Member invited successfully")
}

// invitation loads the invitation and checks action against it, so an
// invitation of another organization is refused like any foreign subject.
func (c *MembersController) invitation(ctx context.Context, args secureroute.Args[InviteParams, secureroute.None, secureroute.None]) (*services.InvitationView, error) {
	inv, err := c.organizationService.GetInvitation(ctx, args.Params.Data.InviteID)
	if err != nil {
		return nil, err
	}
	subject := ability.Invitation{ID: inv.ID, OrganizationID: inv.OrganizationID, Email: inv.Email}
	if err := c.guard.EnsureCan(ctx, args.Identity, ability.Cancel, subject); err != nil {
		return nil, err
	}
	return inv, nil
}

func (c *MembersController) GetInvitation(ctx context.Context, args secureroute.Args[InviteParams, secureroute.None, secureroute.None]) secureroute.Response {
	inv, err := c.invitation(ctx, args)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(InvitationResponse{Invitation: inv})
}

func (c *MembersController) CancelInvitation(ctx context.Context, args secureroute.Args[InviteParams, secureroute.None, secureroute.None]) secureroute.Response {
	inv, err := c.invitation(ctx, args)
	if err != nil {
		return secureroute.Error(err)
	}
	if err := c.organizationService.CancelInvitation(ctx, inv.ID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to cancel invitation")
	}
	return secureroute.Success("Invitation cancelled successfully")
}

func (c *MembersController) authorizeMember(ctx context.Context, ident *identity.Identity, id string, action ability.Action) error {
	m, err := c.organizationService.GetMember(ctx, id)
	if err != nil {
		return err
	}
	return c.guard.EnsureCan(ctx, ident, action, ability.Member{OrganizationID: m.OrganizationID, ID: m.ID})
}

func (c *MembersController) Remove(ctx context.Context, args secureroute.Args[MemberParams, secureroute.None, secureroute.None]) secureroute.Response {
	id := args.Params.Data.MemberID
	if err := c.authorizeMember(ctx, args.Identity, id, ability.Remove); err != nil {
		return secureroute.Error(err)
	}
	if err := c.organizationService.RemoveMember(ctx, id); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to remove member")
	}
	return secureroute.Success("Member removed successfully")
}

func (c *MembersController) SetRole(ctx context.Context, args secureroute.Args[MemberParams, secureroute.None, SetRoleDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	id := args.Params.Data.MemberID
	if err := c.authorizeMember(ctx, args.Identity, id, ability.SetRole); err != nil {
		return secureroute.Error(err)
	}
	if err := c.organizationService.SetMemberRole(ctx, id, dto.Role); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to update member role")
	}
	return secureroute.Success("Member role updated successfully")
}
