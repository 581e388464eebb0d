package organization

import (
	"github.com/iota-uz/saaskit/modules/auth/infrastructure/persistence"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/modules/organization/presentation/controllers"
	"github.com/iota-uz/saaskit/modules/organization/services"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/configuration"
)

func NewModule() application.Module {
	return &Module{}
}

// Module serves organization onboarding, settings and membership management.
// It must be loaded after the auth module.
type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	app.RegisterServices(
		services.NewOrganizationService(
			persistence.NewOrganizationRepository(),
			persistence.NewMemberRepository(),
			persistence.NewInvitationRepository(),
			persistence.NewUserRepository(),
			app.Service(authservices.SessionService{}).(*authservices.SessionService),
			app.Service(authservices.LogMailer{}).(authservices.Mailer),
			services.OrganizationServiceOptions{
				Origin:        conf.Origin,
				InvitationTTL: conf.Session.InvitationTTL,
			},
		),
	)
	app.RegisterControllers(
		controllers.NewSelectController(app),
		controllers.NewOrganizationController(app),
		controllers.NewMembersController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "organization"
}
