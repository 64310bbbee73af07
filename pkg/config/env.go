package config

const (
	EnvPrefix = "COFFEESHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "COFFEESHOP_APP_ENV"
	EnvPort          = "COFFEESHOP_APP_PORT"
	EnvDBDSN         = "COFFEESHOP_DB_DSN"
	EnvDBHost        = "COFFEESHOP_DB_HOST"
	EnvDBUser        = "COFFEESHOP_DB_USER"
	EnvDBName        = "COFFEESHOP_DB_NAME"
	EnvRedisURL      = "COFFEESHOP_REDIS_URL"
	EnvJWTSecret     = "COFFEESHOP_JWT_SECRET"
	EnvJWTExpMins    = "COFFEESHOP_JWT_EXPIRATION_MINUTES"
	EnvAdminEmail    = "COFFEESHOP_ADMIN_EMAIL"
	EnvAdminPassword = "COFFEESHOP_ADMIN_PASSWORD"
	EnvCartStore     = "COFFEESHOP_CART_STORE"
	EnvUseSQLite     = "COFFEESHOP_USE_SQLITE"

	// DefaultAdminPassword is the local back-office password; prod must override it.
	DefaultAdminPassword = "admin123"

	CartStoreRedis = "redis"
	CartStoreDB    = "db"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
