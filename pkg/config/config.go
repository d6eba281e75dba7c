package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Workflow     WorkflowConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROCUREMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"PROCUREMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROCUREMENT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PROCUREMENT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PROCUREMENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// HTTPConfig tunes the API edge.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"PROCUREMENT_CORS_ORIGINS"`
	WriteRateLimit  int           `envconfig:"PROCUREMENT_WRITE_RATE_LIMIT" default:"120"`
	WriteRateWindow time.Duration `envconfig:"PROCUREMENT_WRITE_RATE_WINDOW" default:"1m"`
}

type ServiceConfig struct {
	Kind string `envconfig:"PROCUREMENT_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from the background workers when set.
	MetricsAddr string `envconfig:"PROCUREMENT_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"PROCUREMENT_DB_DSN"`
	Driver string `envconfig:"PROCUREMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROCUREMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"PROCUREMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROCUREMENT_DB_USER"`
	LegacyPassword string `envconfig:"PROCUREMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROCUREMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROCUREMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROCUREMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROCUREMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROCUREMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROCUREMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PROCUREMENT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROCUREMENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROCUREMENT_REDIS_ADDR"`
	Password     string        `envconfig:"PROCUREMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROCUREMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROCUREMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROCUREMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROCUREMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROCUREMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROCUREMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PROCUREMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PROCUREMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PROCUREMENT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PROCUREMENT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PROCUREMENT_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PROCUREMENT_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PROCUREMENT_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	WorkflowTopic  string `envconfig:"PROCUREMENT_PUBSUB_WORKFLOW_TOPIC" default:"procurement-workflow-events"`
	InventoryTopic string `envconfig:"PROCUREMENT_PUBSUB_INVENTORY_TOPIC" default:"procurement-inventory-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PROCUREMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PROCUREMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PROCUREMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PROCUREMENT_OUTBOX_RETENTION_DAYS" default:"30"`
}

// WorkflowConfig carries defaults applied by the procurement services.
type WorkflowConfig struct {
	DocumentPageSize        int    `envconfig:"PROCUREMENT_DOCUMENT_PAGE_SIZE" default:"10"`
	DefaultUnit             string `envconfig:"PROCUREMENT_DEFAULT_UNIT" default:"pcs"`
	DefaultRestockThreshold int    `envconfig:"PROCUREMENT_DEFAULT_RESTOCK_THRESHOLD" default:"3"`
	DefaultRestockQuantity  int    `envconfig:"PROCUREMENT_DEFAULT_RESTOCK_QUANTITY" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PROCUREMENT_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"PROCUREMENT_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
