package marketing

import (
	"github.com/iota-uz/saaskit/modules/marketing/presentation/controllers"
	"github.com/iota-uz/saaskit/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterControllers(controllers.NewMarketingController(app))
	return nil
}

func (m *Module) Name() string {
	return "marketing"
}
