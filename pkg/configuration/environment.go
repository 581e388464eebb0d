package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist, looking in the working directory first
// and falling back to the nearest directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		if root, ok := findGoModRoot(); ok {
			for _, file := range envFiles {
				candidate := filepath.Join(root, file)
				if fs.FileExists(candidate) {
					existingFiles = append(existingFiles, candidate)
				}
			}
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func findGoModRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"saaskit"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type GoogleOptions struct {
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

func (g GoogleOptions) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type LokiOptions struct {
	URL    string `env:"LOKI_ENDPOINT" envDefault:"http://localhost:3100/loki/api/v1/push"`
	Labels string `env:"LOKI_LABELS" envDefault:"{\"job\":\"app\"}"`
}

type LoggingOptions struct {
	Level             string `env:"LOG_LEVEL" envDefault:"info"`
	Adapters          string `env:"LOG_ADAPTERS" envDefault:"file,prettyConsoleError"`
	LogPath           string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	SlackWebhookURL   string `env:"SLACK_WEBHOOK_URL"`
	TeamsWebhookURL   string `env:"TEAMS_WEBHOOK_URL"`
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`
	QueueSize         int    `env:"LOG_ADAPTER_QUEUE_SIZE" envDefault:"256"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"saaskit"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled  bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AuthRPM  int    `env:"RATE_LIMIT_AUTH_RPM" envDefault:"20"`
	Storage  string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.AuthRPM < 0 {
		return fmt.Errorf("rate limit AuthRPM must be non-negative, got %d", r.AuthRPM)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type AuthzOptions struct {
	// Empty paths fall back to the policy compiled into the binary.
	ModelPath  string `env:"AUTHZ_MODEL_PATH"`
	PolicyPath string `env:"AUTHZ_POLICY_PATH"`
}

type SessionOptions struct {
	CookieKey      string        `env:"SID_COOKIE_KEY" envDefault:"sid"`
	Duration       time.Duration `env:"SESSION_DURATION" envDefault:"168h"`
	OauthStateKey  string        `env:"OAUTH_STATE_COOKIE_KEY" envDefault:"oauthState"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	InvitationTTL  time.Duration `env:"INVITATION_TTL" envDefault:"48h"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`
	SecureCookies  bool          `env:"SECURE_COOKIES" envDefault:"false"`
	SameSiteStrict bool          `env:"SESSION_SAMESITE_STRICT" envDefault:"false"`
}

type Configuration struct {
	Database      DatabaseOptions
	Google        GoogleOptions
	Loki          LokiOptions
	Logging       LoggingOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Authz         AuthzOptions
	Session       SessionOptions

	MigrationsOnStart bool   `env:"MIGRATIONS_ON_START" envDefault:"true"`
	ServerPort        int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment  string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress     string `env:"-"`
	Domain            string `env:"DOMAIN" envDefault:"localhost"`
	Origin            string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	CorsOrigins       string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	PageSize          int    `env:"PAGE_SIZE" envDefault:"25"`
	MaxUploadMemory   int64  `env:"MAX_UPLOAD_MEMORY" envDefault:"33554432"`
	// Header carrying the request id; a random uuid is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Falls back to request.RemoteAddr when the header is absent.
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	// Allowlist describing which route class each path prefix belongs to.
	RoutingAllowlistPath string `env:"ROUTING_ALLOWLIST_PATH"`

	// Ops routes (metrics, health) are only guarded in production.
	OpsGuardEnabled bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	OpsGuardCIDRs   string `env:"OPS_GUARD_CIDRS"`
	OpsGuardToken   string `env:"OPS_GUARD_TOKEN"`

	logger *logrus.Logger
	closer func()
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.Logging.Level)
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Configuration) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CorsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if c.Session.BcryptCost < 4 || c.Session.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST=%d (expected 4..31)", c.Session.BcryptCost)
	}

	logger, closer, err := logging.New(c.LoggerOptions())
	if err != nil {
		return err
	}
	c.logger = logger
	c.closer = closer

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

// LoggerOptions translates the logging sections into logging.Options.
func (c *Configuration) LoggerOptions() logging.Options {
	return logging.Options{
		Level:             c.Logging.Level,
		Adapters:          logging.ParseAdapterNames(c.Logging.Adapters),
		FilePath:          c.Logging.LogPath,
		LokiURL:           c.Loki.URL,
		LokiLabels:        c.Loki.Labels,
		SlackWebhookURL:   c.Logging.SlackWebhookURL,
		TeamsWebhookURL:   c.Logging.TeamsWebhookURL,
		DiscordWebhookURL: c.Logging.DiscordWebhookURL,
		QueueSize:         c.Logging.QueueSize,
	}
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.closer != nil {
		c.closer()
	}
}
