package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Admin         AdminConfig
	Auth          AuthConfig
	AuthRateLimit AuthRateLimitConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Idempotency   IdempotencyConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations envconfig cannot express on its own.
func (c Config) Validate() error {
	switch c.Cart.Store {
	case CartStoreRedis, CartStoreDB:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvCartStore, CartStoreRedis, CartStoreDB, c.Cart.Store)
	}
	if c.JWT.ExpirationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if strings.TrimSpace(c.Admin.Email) == "" || c.Admin.Password == "" {
		return fmt.Errorf("%s and %s are required", EnvAdminEmail, EnvAdminPassword)
	}
	if c.Checkout.PaymentLatency < 0 || c.Auth.Latency < 0 {
		return fmt.Errorf("simulated latencies must not be negative")
	}
	if c.Cart.LockTTL <= c.Checkout.PaymentLatency {
		return fmt.Errorf("cart lock ttl %s must exceed payment latency %s", c.Cart.LockTTL, c.Checkout.PaymentLatency)
	}
	if c.Idempotency.TTL <= 0 || c.Idempotency.CheckoutTTL <= 0 || c.Idempotency.PendingTTL <= 0 {
		return fmt.Errorf("idempotency ttls must be positive")
	}
	if c.App.IsProd() {
		if c.FeatureFlags.UseSQLite {
			return fmt.Errorf("%s is not allowed in %s", EnvUseSQLite, AppEnvProd)
		}
		if c.Admin.Password == DefaultAdminPassword {
			return fmt.Errorf("%s must be changed in %s", EnvAdminPassword, AppEnvProd)
		}
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"COFFEESHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"COFFEESHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COFFEESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COFFEESHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"COFFEESHOP_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COFFEESHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"COFFEESHOP_DB_DSN"`
	Driver     string `envconfig:"COFFEESHOP_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"COFFEESHOP_DB_SQLITE_PATH" default:"coffeeshop.db"`

	LegacyHost     string `envconfig:"COFFEESHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"COFFEESHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COFFEESHOP_DB_USER"`
	LegacyPassword string `envconfig:"COFFEESHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"COFFEESHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"COFFEESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COFFEESHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COFFEESHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COFFEESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COFFEESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"COFFEESHOP_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
	LogQueries         bool          `envconfig:"COFFEESHOP_DB_LOG_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COFFEESHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COFFEESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"COFFEESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"COFFEESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COFFEESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COFFEESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COFFEESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COFFEESHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COFFEESHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COFFEESHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COFFEESHOP_JWT_ISSUER" default:"coffeeshop"`
	ExpirationMinutes int    `envconfig:"COFFEESHOP_JWT_EXPIRATION_MINUTES" default:"60"`
	SessionTTLMinutes int    `envconfig:"COFFEESHOP_SESSION_TTL_MINUTES" default:"10080"`
}

// SessionTTL returns how long a login session stays valid in redis.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"COFFEESHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"COFFEESHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"COFFEESHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"COFFEESHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"COFFEESHOP_ARGON_KEY_LEN" default:"32"`
}

// AdminConfig holds the single back-office credential pair.
type AdminConfig struct {
	Email    string `envconfig:"COFFEESHOP_ADMIN_EMAIL" default:"admin@coffee.com"`
	Password string `envconfig:"COFFEESHOP_ADMIN_PASSWORD" default:"admin123"`
	Name     string `envconfig:"COFFEESHOP_ADMIN_NAME" default:"Администратор"`
}

type AuthConfig struct {
	Latency     time.Duration `envconfig:"COFFEESHOP_AUTH_LATENCY" default:"800ms"`
	DefaultName string        `envconfig:"COFFEESHOP_AUTH_DEFAULT_NAME" default:"Уважаемый Клиент"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit    int           `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	RegisterEmailLimit int           `envconfig:"COFFEESHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"5"`
}

type CartConfig struct {
	Store   string        `envconfig:"COFFEESHOP_CART_STORE" default:"redis"`
	// LockTTL also covers checkout, which holds the owner lock while charging.
	LockTTL time.Duration `envconfig:"COFFEESHOP_CART_LOCK_TTL" default:"15s"`
	TTL     time.Duration `envconfig:"COFFEESHOP_CART_TTL" default:"720h"`
}

type CheckoutConfig struct {
	PaymentLatency time.Duration `envconfig:"COFFEESHOP_CHECKOUT_PAYMENT_LATENCY" default:"1500ms"`
	PaymentFail    bool          `envconfig:"COFFEESHOP_CHECKOUT_PAYMENT_FAIL" default:"false"`
	Country        string        `envconfig:"COFFEESHOP_CHECKOUT_COUNTRY" default:"Россия"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"COFFEESHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COFFEESHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COFFEESHOP_AUTO_MIGRATE" default:"false"`
	SeedCatalog bool `envconfig:"COFFEESHOP_SEED_CATALOG" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"COFFEESHOP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// IdempotencyConfig sets how long replayable write responses are kept.
type IdempotencyConfig struct {
	TTL         time.Duration `envconfig:"COFFEESHOP_IDEMPOTENCY_TTL" default:"24h"`
	CheckoutTTL time.Duration `envconfig:"COFFEESHOP_IDEMPOTENCY_CHECKOUT_TTL" default:"168h"`
	// PendingTTL caps how long an in-flight request holds its key.
	PendingTTL  time.Duration `envconfig:"COFFEESHOP_IDEMPOTENCY_PENDING_TTL" default:"2m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COFFEESHOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"COFFEESHOP_PUBSUB_ORDERS_TOPIC" default:"coffeeshop-order-events"`
	CatalogTopic string `envconfig:"COFFEESHOP_PUBSUB_CATALOG_TOPIC" default:"coffeeshop-catalog-events"`
	Endpoint     string `envconfig:"COFFEESHOP_PUBSUB_ENDPOINT"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"COFFEESHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"COFFEESHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"COFFEESHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"COFFEESHOP_OUTBOX_RETENTION" default:"720h"`

	// PublishConcurrency bounds in-flight pubsub publishes per batch.
	PublishConcurrency int `envconfig:"COFFEESHOP_OUTBOX_PUBLISH_CONCURRENCY" default:"8"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"COFFEESHOP_CRON_INTERVAL" default:"1h"`
	LockTTL    time.Duration `envconfig:"COFFEESHOP_CRON_LOCK_TTL" default:"10m"`
	// JobTimeout bounds a single job; keep it under LockTTL.
	JobTimeout time.Duration `envconfig:"COFFEESHOP_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
