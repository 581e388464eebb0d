package application

import (
	"context"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

type SeedFunc func(ctx context.Context, app Application) error

type Seeder interface {
	Seed(ctx context.Context, app Application) error
	Register(seedFuncs ...SeedFunc)
}

type MigrationManager interface {
	Run(ctx context.Context) error
	Status(ctx context.Context) ([]MigrationState, error)
}

// Application is the service registry shared by modules and the server.
type Application interface {
	DB() *pgxpool.Pool
	Logger() *logrus.Logger
	Middleware() []mux.MiddlewareFunc
	Controllers() []Controller
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}
