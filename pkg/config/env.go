package config

// EnvPrefix is the envconfig prefix. Field tags already carry the full
// variable names so the prefix only guards against accidental collisions.
const EnvPrefix = "MUSICPORTAL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "MUSICPORTAL_APP_ENV"
	EnvPort         = "MUSICPORTAL_APP_PORT"
	EnvLogLevel     = "MUSICPORTAL_LOG_LEVEL"
	EnvLogWarnStack = "MUSICPORTAL_LOG_WARN_STACK"
	EnvLogFormat    = "MUSICPORTAL_LOG_FORMAT"

	EnvDBDSN      = "MUSICPORTAL_DB_DSN"
	EnvDBDriver   = "MUSICPORTAL_DB_DRIVER"
	EnvDBHost     = "MUSICPORTAL_DB_HOST"
	EnvDBPort     = "MUSICPORTAL_DB_PORT"
	EnvDBUser     = "MUSICPORTAL_DB_USER"
	EnvDBPassword = "MUSICPORTAL_DB_PASSWORD"
	EnvDBName     = "MUSICPORTAL_DB_NAME"
	EnvDBSSLMode  = "MUSICPORTAL_DB_SSLMODE"

	EnvRedisURL = "MUSICPORTAL_REDIS_URL"

	EnvJWTSecret               = "MUSICPORTAL_JWT_SECRET"
	EnvJWTIssuer               = "MUSICPORTAL_JWT_ISSUER"
	EnvJWTExpMins              = "MUSICPORTAL_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "MUSICPORTAL_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite               = "MUSICPORTAL_USE_SQLITE"
	EnvAutoMigrate             = "MUSICPORTAL_AUTO_MIGRATE"
	EnvSeedOnStart             = "MUSICPORTAL_SEED_ON_START"
	EnvStorageRoot             = "MUSICPORTAL_STORAGE_ROOT"
	EnvStoragePublicPrefix     = "MUSICPORTAL_STORAGE_PUBLIC_PREFIX"
	EnvMaxUploadMB             = "MUSICPORTAL_MAX_UPLOAD_MB"
	EnvCatalogDefaultPageSize  = "MUSICPORTAL_CATALOG_DEFAULT_PAGE_SIZE"
	EnvCatalogMaxPageSize      = "MUSICPORTAL_CATALOG_MAX_PAGE_SIZE"
	EnvCatalogGenreCacheTTL    = "MUSICPORTAL_CATALOG_GENRE_CACHE_TTL"
	EnvSeedAdminUsername       = "MUSICPORTAL_SEED_ADMIN_USERNAME"
	EnvSeedAdminEmail          = "MUSICPORTAL_SEED_ADMIN_EMAIL"
	EnvSeedAdminPassword       = "MUSICPORTAL_SEED_ADMIN_PASSWORD"
	EnvGCPProjectID            = "MUSICPORTAL_GCP_PROJECT_ID"
	EnvPubSubRegistrationTopic = "MUSICPORTAL_PUBSUB_REGISTRATION_TOPIC"
	EnvPubSubCatalogTopic      = "MUSICPORTAL_PUBSUB_CATALOG_TOPIC"
	EnvPubSubEnabled           = "MUSICPORTAL_PUBSUB_ENABLED"
	EnvCORSAllowedOrigins      = "MUSICPORTAL_CORS_ALLOWED_ORIGINS"
)
