package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/saaskit/modules/organization/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
	"github.com/iota-uz/saaskit/pkg/validation"
)

type OrganizationUpdateDTO struct {
	Name           string `form:"name" validate:"required,max=100"`
	OrganizationID string `form:"organizationId" validate:"required"`
}

type OrganizationDeleteDTO struct {
	OrganizationID string `form:"organizationId" validate:"required"`
}

var (
	updateSchema = validation.Shape[OrganizationUpdateDTO]().Messages(map[string]string{
		"name.required":           "Name is required",
		"name.max":                "Name is too long",
		"organizationId.required": "Organization is required",
	})
	deleteSchema = validation.Shape[OrganizationDeleteDTO]().Messages(map[string]string{
		"organizationId.required": "Organization is required",
	})
)

type OrganizationGeneralResponse struct {
	ActiveOrg *identity.Organization `json:"activeOrg"`
	Role      string                 `json:"role"`
}

func NewOrganizationController(app application.Application) application.Controller {
	return &OrganizationController{
		guard:               app.Service(secureroute.Guard{}).(*secureroute.Guard),
		organizationService: app.Service(services.OrganizationService{}).(*services.OrganizationService),
		basePath:            "/app/organization",
	}
}

type OrganizationController struct {
	guard               *secureroute.Guard
	organizationService *services.OrganizationService
	basePath            string
}

func (c *OrganizationController) Key() string {
	return c.basePath
}

func (c *OrganizationController) Register(r *mux.Router) {
	r.Handle(c.basePath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Read, ability.OrganizationType),
		Handle:     c.General,
	})).Methods(http.MethodGet)
	r.Handle(c.basePath+"/update", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, OrganizationUpdateDTO]{
		Permission: secureroute.Require(ability.Update, ability.OrganizationType),
		Form:       updateSchema,
		Handle:     c.Update,
	})).Methods(http.MethodPost)
	r.Handle(c.basePath+"/delete", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, OrganizationDeleteDTO]{
		Permission: secureroute.Require(ability.Delete, ability.OrganizationType),
		Form:       deleteSchema,
		Handle:     c.Delete,
	})).Methods(http.MethodPost)
}

func (c *OrganizationController) General(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	orgID := args.Identity.Organization.ID
	if err := c.guard.EnsureCan(ctx, args.Identity, ability.Read, ability.Organization{ID: orgID}); err != nil {
		return secureroute.Error(err)
	}
	org, err := c.organizationService.GetByID(ctx, orgID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(OrganizationGeneralResponse{ActiveOrg: org, Role: args.Identity.Organization.Role})
}

func (c *OrganizationController) Update(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, OrganizationUpdateDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if err := c.guard.EnsureCan(ctx, args.Identity, ability.Update, ability.Organization{ID: dto.OrganizationID}); err != nil {
		return secureroute.Error(err)
	}
	if _, err := c.organizationService.Rename(ctx, dto.OrganizationID, dto.Name); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to update organization")
	}
	return secureroute.JSON(secureroute.Result{Success: true})
}

func (c *OrganizationController) Delete(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, OrganizationDeleteDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if err := c.guard.EnsureCan(ctx, args.Identity, ability.Delete, ability.Organization{ID: dto.OrganizationID}); err != nil {
		return secureroute.Error(err)
	}
	if err := c.organizationService.Delete(ctx, dto.OrganizationID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to delete organization")
	}
	return secureroute.Redirect(constants.OrganizationSelectPath)
}
