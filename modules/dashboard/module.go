package dashboard

import (
	"github.com/iota-uz/saaskit/modules/dashboard/presentation/controllers"
	"github.com/iota-uz/saaskit/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

// Module serves the app home and the profile pages. It must be loaded after the
// auth and products modules.
type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterControllers(
		controllers.NewDashboardController(app),
		controllers.NewProfileController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "dashboard"
}
