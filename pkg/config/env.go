package config

// EnvPrefix is passed to envconfig. Tagged fields fall back to the bare tag name.
const EnvPrefix = "PROCUREMENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "PROCUREMENT_APP_ENV"
	EnvPort         = "PROCUREMENT_APP_PORT"
	EnvDBDSN        = "PROCUREMENT_DB_DSN"
	EnvDBHost       = "PROCUREMENT_DB_HOST"
	EnvDBPort       = "PROCUREMENT_DB_PORT"
	EnvDBUser       = "PROCUREMENT_DB_USER"
	EnvDBPassword   = "PROCUREMENT_DB_PASSWORD"
	EnvDBName       = "PROCUREMENT_DB_NAME"
	EnvRedisURL     = "PROCUREMENT_REDIS_URL"
	EnvJWTSecret    = "PROCUREMENT_JWT_SECRET"
	EnvJWTIssuer    = "PROCUREMENT_JWT_ISSUER"
	EnvJWTExpMins   = "PROCUREMENT_JWT_EXPIRATION_MINUTES"
	EnvPubSubTopic  = "PROCUREMENT_PUBSUB_WORKFLOW_TOPIC"
	EnvDocPageSize  = "PROCUREMENT_DOCUMENT_PAGE_SIZE"
	EnvCronInterval = "PROCUREMENT_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
