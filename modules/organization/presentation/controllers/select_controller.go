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

type SelectDTO struct {
	OrganizationID string `form:"organizationId"`
}

type CreateOrganizationDTO struct {
	Name string `form:"name" validate:"required,max=100"`
}

type SlugQuery struct {
	Slug string `form:"slug" validate:"required"`
}

var (
	selectSchema = validation.Shape[SelectDTO]()
	createSchema = validation.Shape[CreateOrganizationDTO]().Messages(map[string]string{
		"name.required": "Name is required",
		"name.max":      "Name is too long",
	}).Refine(func(dto *CreateOrganizationDTO, errs validation.FieldErrors) {
		if services.Slugify(dto.Name) == "" {
			errs.Add("name", "Name is required")
		}
	})
	slugSchema = validation.Shape[SlugQuery]()
)

type OrganizationsResponse struct {
	Organizations []identity.Organization `json:"organizations"`
}

type OnboardingResponse struct {
	HasOrganizations bool `json:"hasOrganizations"`
}

type SlugResponse struct {
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

// NewSelectController serves the pages a signed in user reaches before an
// organization is active: select, onboarding and joining by invitation.
func NewSelectController(app application.Application) application.Controller {
	return &SelectController{
		guard:               app.Service(secureroute.Guard{}).(*secureroute.Guard),
		organizationService: app.Service(services.OrganizationService{}).(*services.OrganizationService),
	}
}

type SelectController struct {
	guard               *secureroute.Guard
	organizationService *services.OrganizationService
}

func (c *SelectController) Key() string {
	return constants.OrganizationSelectPath
}

func (c *SelectController) Register(r *mux.Router) {
	r.Handle(constants.OrganizationSelectPath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.SignedIn,
		Handle:     c.List,
	})).Methods(http.MethodGet)
	r.Handle(constants.OrganizationSelectPath, secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, SelectDTO]{
		Permission: secureroute.SignedIn,
		Form:       selectSchema,
		Handle:     c.Select,
	})).Methods(http.MethodPost)

	r.Handle(constants.OnboardingPath, secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, secureroute.None]{
		Permission: secureroute.SignedIn,
		Handle:     c.Onboarding,
	})).Methods(http.MethodGet)
	r.Handle(constants.OnboardingPath+"/check-slug", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[secureroute.None, SlugQuery]{
		Permission: secureroute.Require(ability.Create, ability.OrganizationType).WithoutOrganization(),
		Query:      slugSchema,
		Handle:     c.CheckSlug,
	})).Methods(http.MethodGet)
	r.Handle(constants.OnboardingPath+"/create", secureroute.NewAction(c.guard, secureroute.ActionConfig[secureroute.None, secureroute.None, CreateOrganizationDTO]{
		Permission: secureroute.Require(ability.Create, ability.OrganizationType).WithoutOrganization(),
		Form:       createSchema,
		Handle:     c.Create,
	})).Methods(http.MethodPost)
	r.Handle(constants.OnboardingPath+"/join/{inviteId}", secureroute.NewLoader(c.guard, secureroute.LoaderConfig[InviteParams, secureroute.None]{
		Permission: secureroute.Require(ability.Accept, ability.InvitationType).WithoutOrganization(),
		Params:     inviteParamsSchema,
		Handle:     c.GetInvitation,
	})).Methods(http.MethodGet)
	r.Handle(constants.OnboardingPath+"/join/{inviteId}", secureroute.NewAction(c.guard, secureroute.ActionConfig[InviteParams, secureroute.None, secureroute.None]{
		Permission: secureroute.Require(ability.Accept, ability.InvitationType).WithoutOrganization(),
		Params:     inviteParamsSchema,
		Handle:     c.Join,
	})).Methods(http.MethodPost)
}

func (c *SelectController) List(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	orgs, err := c.organizationService.ListForUser(ctx, args.Identity.User.ID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(OrganizationsResponse{Organizations: orgs})
}

// Select activates the posted organization. An empty selection just returns to the app.
func (c *SelectController) Select(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, SelectDTO]) secureroute.Response {
	if args.Form.Data != nil && args.Form.Data.OrganizationID != "" {
		if err := c.organizationService.Select(ctx, args.Identity, args.Form.Data.OrganizationID); err != nil {
			return secureroute.Error(err)
		}
	}
	return secureroute.Redirect(constants.AppPath)
}

func (c *SelectController) Onboarding(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, secureroute.None]) secureroute.Response {
	orgs, err := c.organizationService.ListForUser(ctx, args.Identity.User.ID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(OnboardingResponse{HasOrganizations: len(orgs) > 0})
}

func (c *SelectController) CheckSlug(ctx context.Context, args secureroute.Args[secureroute.None, SlugQuery, secureroute.None]) secureroute.Response {
	slug := services.Slugify(args.Query.Data.Slug)
	ok, err := c.organizationService.SlugAvailable(ctx, slug)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(SlugResponse{Slug: slug, Available: ok})
}

func (c *SelectController) Create(ctx context.Context, args secureroute.Args[secureroute.None, secureroute.None, CreateOrganizationDTO]) secureroute.Response {
	dto, bad := secureroute.FormData(args.Form)
	if bad != nil {
		return *bad
	}
	if _, err := c.organizationService.Create(ctx, args.Identity, dto.Name); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to create organization")
	}
	return secureroute.Redirect(constants.AppPath)
}

func (c *SelectController) GetInvitation(ctx context.Context, args secureroute.Args[InviteParams, secureroute.None, secureroute.None]) secureroute.Response {
	inv, err := c.organizationService.InvitationFor(ctx, args.Identity, args.Params.Data.InviteID)
	if err != nil {
		return secureroute.Error(err)
	}
	return secureroute.JSON(InvitationResponse{Invitation: inv})
}

func (c *SelectController) Join(ctx context.Context, args secureroute.Args[InviteParams, secureroute.None, secureroute.None]) secureroute.Response {
	if _, err := c.organizationService.AcceptInvitation(ctx, args.Identity, args.Params.Data.InviteID); err != nil {
		return secureroute.FailureOf(ctx, err, "Failed to join organization")
	}
	return secureroute.Redirect(constants.AppPath)
}
