package constants

type ContextKey string

const (
	LoggerKey    ContextKey = "logger"
	RequestStart ContextKey = "requestStart"
	ParamsKey    ContextKey = "params"
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	AppKey       ContextKey = "app"
	IdentityKey  ContextKey = "identity"
	OrgStateKey  ContextKey = "orgState"
)

const (
	LoginPath              = "/login"
	AppPath                = "/app"
	OrganizationSelectPath = "/app/organization/select"
	OnboardingPath         = "/app/organization/onboarding"
)
