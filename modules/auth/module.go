package auth

import (
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/iota-uz/saaskit/modules/auth/infrastructure/persistence"
	"github.com/iota-uz/saaskit/modules/auth/presentation/controllers"
	"github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/secureroute"
)

type ModuleOptions struct {
	// Abilities compiles the rule sets the route guard checks.
	Abilities *ability.Builder
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{options: opts}
}

// Module owns users, sessions and organizations, and builds the route guard the
// other modules register their routes with. Load it first.
type Module struct {
	options *ModuleOptions
}

func googleConfig(conf *configuration.Configuration) *oauth2.Config {
	if !conf.Google.Enabled() {
		return nil
	}
	return &oauth2.Config{
		RedirectURL:  conf.Google.RedirectURL,
		ClientID:     conf.Google.ClientID,
		ClientSecret: conf.Google.ClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	userRepo := persistence.NewUserRepository()
	sessionRepo := persistence.NewSessionRepository()
	orgRepo := persistence.NewOrganizationRepository()
	memberRepo := persistence.NewMemberRepository()

	cookieDomain := conf.Domain
	if cookieDomain == "localhost" {
		cookieDomain = ""
	}
	sameSite := http.SameSiteLaxMode
	if conf.Session.SameSiteStrict {
		sameSite = http.SameSiteStrictMode
	}
	sessionService := services.NewSessionService(
		userRepo,
		sessionRepo,
		orgRepo,
		memberRepo,
		services.CookieOptions{
			Name:     conf.Session.CookieKey,
			Domain:   cookieDomain,
			Secure:   conf.Session.SecureCookies,
			SameSite: sameSite,
		},
		conf.Session.Duration,
		services.WithSessionLogger(app.Logger()),
	)
	mailer := services.NewLogMailer(app.Logger())
	authService := services.NewAuthService(
		userRepo,
		persistence.NewAccountRepository(),
		persistence.NewVerificationRepository(),
		sessionService,
		mailer,
		services.AuthServiceOptions{
			BcryptCost:    conf.Session.BcryptCost,
			ResetTokenTTL: conf.Session.ResetTokenTTL,
			Origin:        conf.Origin,
			Google:        googleConfig(conf),
			Logger:        app.Logger(),
		},
	)

	abilities := m.options.Abilities
	guard := secureroute.NewGuard(
		identity.NewResolver(sessionService, sessionService),
		abilities,
		secureroute.WithFallbackLogger(app.Logger()),
	)

	app.RegisterServices(
		sessionService,
		mailer,
		authService,
		services.NewUserService(userRepo, sessionService),
		abilities,
		guard,
	)
	app.RegisterControllers(
		controllers.NewLoginController(app),
		controllers.NewSignupController(app),
		controllers.NewLogoutController(app),
		controllers.NewPasswordController(app),
		controllers.NewSessionController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "auth"
}
