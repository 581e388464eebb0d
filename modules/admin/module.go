package admin

import (
	"github.com/iota-uz/saaskit/modules/admin/presentation/controllers"
	"github.com/iota-uz/saaskit/modules/admin/services"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

// Module serves user administration under /app/admin. It must be loaded after auth.
type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterServices(services.NewUserDirectory(
		app.Service(authservices.UserService{}).(*authservices.UserService),
		app.Service(authservices.SessionService{}).(*authservices.SessionService),
	))
	app.RegisterControllers(controllers.NewUsersController(app))
	return nil
}

func (m *Module) Name() string {
	return "admin"
}
