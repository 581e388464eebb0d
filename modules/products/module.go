package products

import (
	"github.com/iota-uz/saaskit/modules/products/infrastructure/persistence"
	"github.com/iota-uz/saaskit/modules/products/presentation/controllers"
	"github.com/iota-uz/saaskit/modules/products/services"
	"github.com/iota-uz/saaskit/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterServices(services.NewProductService(persistence.NewProductRepository()))
	app.RegisterControllers(controllers.NewProductController(app))
	return nil
}

func (m *Module) Name() string {
	return "products"
}
