package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iota-uz/saaskit/internal/server"
	"github.com/iota-uz/saaskit/migrations"
	"github.com/iota-uz/saaskit/modules/admin"
	"github.com/iota-uz/saaskit/modules/auth"
	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/modules/dashboard"
	"github.com/iota-uz/saaskit/modules/marketing"
	"github.com/iota-uz/saaskit/modules/organization"
	"github.com/iota-uz/saaskit/modules/products"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/logging"
	"github.com/iota-uz/saaskit/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:       pool,
		Logger:     logger,
		Migrations: application.NewMigrationManager(stdlib.OpenDBFromPool(pool), migrations.FS, logger),
	})
	if conf.MigrationsOnStart {
		if err := app.Migrations().Run(context.Background()); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	abilities := ability.NewBuilder(authz.Use(), ability.WithLogger(logger))
	if err := application.Load(app,
		auth.NewModule(&auth.ModuleOptions{Abilities: abilities}),
		organization.NewModule(),
		products.NewModule(),
		admin.NewModule(),
		dashboard.NewModule(),
		marketing.NewModule(),
	); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	app.RegisterControllers(metrics.NewHealthController(pool))
	if conf.Prometheus.Enabled {
		prometheus.MustRegister(metrics.NewPoolCollector(pool))
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
		OrgStore:      app.Service(authservices.SessionService{}).(*authservices.SessionService),
		Entrypoint:    "server",
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if conf.Authz.PolicyPath != "" {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go authz.Use().ReloadOn(runCtx, hup)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(runCtx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
