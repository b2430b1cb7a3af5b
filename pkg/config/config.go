package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storage       StorageConfig
	Catalog       CatalogConfig
	Seed          SeedConfig
	CORS          CORSConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error
	if err := c.DB.resolveDSN(c.FeatureFlags.UseSQLite); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.JWT.ExpirationMinutes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		errs = multierr.Append(errs, fmt.Errorf("%s must be at least %d bytes in prod", EnvJWTSecret, minProdSecretLen))
	}
	if c.Catalog.DefaultPageSize < 1 || c.Catalog.DefaultPageSize > c.Catalog.MaxPageSize {
		errs = multierr.Append(errs, fmt.Errorf("%s must be between 1 and %s", EnvCatalogDefaultPageSize, EnvCatalogMaxPageSize))
	}
	if c.PubSub.Enabled && strings.TrimSpace(c.GCP.ProjectID) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s is required when %s is set", EnvGCPProjectID, EnvPubSubEnabled))
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"MUSICPORTAL_APP_ENV" required:"true"`
	Port         string `envconfig:"MUSICPORTAL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MUSICPORTAL_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MUSICPORTAL_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MUSICPORTAL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MUSICPORTAL_DB_DSN"`
	Driver string `envconfig:"MUSICPORTAL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MUSICPORTAL_DB_HOST"`
	Port     int    `envconfig:"MUSICPORTAL_DB_PORT" default:"5432"`
	User     string `envconfig:"MUSICPORTAL_DB_USER"`
	Password string `envconfig:"MUSICPORTAL_DB_PASSWORD"`
	Name     string `envconfig:"MUSICPORTAL_DB_NAME"`
	SSLMode  string `envconfig:"MUSICPORTAL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MUSICPORTAL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MUSICPORTAL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MUSICPORTAL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MUSICPORTAL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MUSICPORTAL_DB_SLOW_QUERY" default:"250ms"`
	LogQueries      bool          `envconfig:"MUSICPORTAL_DB_LOG_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MUSICPORTAL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MUSICPORTAL_REDIS_ADDR"`
	Password     string        `envconfig:"MUSICPORTAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"MUSICPORTAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MUSICPORTAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MUSICPORTAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MUSICPORTAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MUSICPORTAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MUSICPORTAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MUSICPORTAL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MUSICPORTAL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MUSICPORTAL_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MUSICPORTAL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MUSICPORTAL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MUSICPORTAL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MUSICPORTAL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MUSICPORTAL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MUSICPORTAL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow           time.Duration `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit    int           `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow        time.Duration `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterUsernameLimit int           `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_REGISTER_USERNAME_LIMIT" default:"3"`
	RegisterIPLimit       int           `envconfig:"MUSICPORTAL_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MUSICPORTAL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MUSICPORTAL_AUTO_MIGRATE" default:"false"`
	SeedOnStart bool `envconfig:"MUSICPORTAL_SEED_ON_START" default:"true"`
}

// StorageConfig controls where uploaded song files land on disk and the
// public prefix under which they are served.
type StorageConfig struct {
	Root         string `envconfig:"MUSICPORTAL_STORAGE_ROOT" default:"./data"`
	PublicPrefix string `envconfig:"MUSICPORTAL_STORAGE_PUBLIC_PREFIX" default:"/songs"`
	MaxUploadMB  int    `envconfig:"MUSICPORTAL_MAX_UPLOAD_MB" default:"50"`
}

// MaxUploadBytes converts MaxUploadMB to bytes, zero meaning unlimited.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

type CatalogConfig struct {
	DefaultPageSize int           `envconfig:"MUSICPORTAL_CATALOG_DEFAULT_PAGE_SIZE" default:"10"`
	MaxPageSize     int           `envconfig:"MUSICPORTAL_CATALOG_MAX_PAGE_SIZE" default:"100"`
	GenreCacheTTL   time.Duration `envconfig:"MUSICPORTAL_CATALOG_GENRE_CACHE_TTL" default:"5m"`
}

type SeedConfig struct {
	AdminUsername string   `envconfig:"MUSICPORTAL_SEED_ADMIN_USERNAME" default:"admin"`
	AdminEmail    string   `envconfig:"MUSICPORTAL_SEED_ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string   `envconfig:"MUSICPORTAL_SEED_ADMIN_PASSWORD" default:"Admin@123"`
	Genres        []string `envconfig:"MUSICPORTAL_SEED_GENRES" default:"Rock,Pop,Jazz,Classical"`
}

type CORSConfig struct {
	AllowedOrigins   []string `envconfig:"MUSICPORTAL_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	AllowCredentials bool     `envconfig:"MUSICPORTAL_CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAgeSeconds    int      `envconfig:"MUSICPORTAL_CORS_MAX_AGE_SECONDS" default:"300"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MUSICPORTAL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MUSICPORTAL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MUSICPORTAL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	Enabled           bool   `envconfig:"MUSICPORTAL_PUBSUB_ENABLED" default:"false"`
	RegistrationTopic string `envconfig:"MUSICPORTAL_PUBSUB_REGISTRATION_TOPIC" default:"mp-registration-events"`
	CatalogTopic      string `envconfig:"MUSICPORTAL_PUBSUB_CATALOG_TOPIC" default:"mp-catalog-events"`
	Endpoint          string `envconfig:"MUSICPORTAL_PUBSUB_ENDPOINT"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"MUSICPORTAL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"MUSICPORTAL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"MUSICPORTAL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsPort    string `envconfig:"MUSICPORTAL_OUTBOX_METRICS_PORT" default:"9091"`
}

const (
	minProdSecretLen = 32
	defaultSQLiteDSN = "file:musicportal.db?cache=shared"
)

// resolveDSN fills DSN from the discrete host/user/name variables when no DSN
// is given.
func (d *DBConfig) resolveDSN(sqlite bool) error {
	switch {
	case d.DSN != "":
		return nil
	case sqlite:
		d.DSN = defaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: d.Host, EnvDBUser: d.User, EnvDBName: d.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(d.User),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	d.DSN = u.String()
	return nil
}
