package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "studyshare"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "STUDYSHARE_APP_ENV"
	EnvDBDSN  = "STUDYSHARE_DB_DSN"
	EnvDBHost = "STUDYSHARE_DB_HOST"
	EnvDBUser = "STUDYSHARE_DB_USER"
	EnvDBName = "STUDYSHARE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Cache        CacheConfig
	SSLCommerz   SSLCommerzConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"STUDYSHARE_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDYSHARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STUDYSHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDYSHARE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STUDYSHARE_DB_DSN"`
	Driver string `envconfig:"STUDYSHARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STUDYSHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"STUDYSHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STUDYSHARE_DB_USER"`
	LegacyPassword string `envconfig:"STUDYSHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"STUDYSHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"STUDYSHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STUDYSHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDYSHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDYSHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDYSHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDYSHARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STUDYSHARE_REDIS_ADDR"`
	Password     string        `envconfig:"STUDYSHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDYSHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDYSHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDYSHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDYSHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDYSHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDYSHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STUDYSHARE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STUDYSHARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STUDYSHARE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STUDYSHARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STUDYSHARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STUDYSHARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STUDYSHARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STUDYSHARE_ARGON_KEY_LEN" default:"32"`
}

// CacheConfig holds the read-cache TTLs. The list TTL defaults lower than the
// detail TTL because filtered views churn faster than single rows.
type CacheConfig struct {
	ListTTL   time.Duration `envconfig:"STUDYSHARE_CACHE_LIST_TTL" default:"60s"`
	DetailTTL time.Duration `envconfig:"STUDYSHARE_CACHE_DETAIL_TTL" default:"300s"`
}

// SSLCommerzConfig carries the payment gateway credentials and callback base.
type SSLCommerzConfig struct {
	StoreID         string        `envconfig:"STUDYSHARE_SSLCOMMERZ_STORE_ID" required:"true"`
	StorePassword   string        `envconfig:"STUDYSHARE_SSLCOMMERZ_STORE_PASSWORD" required:"true"`
	Sandbox         bool          `envconfig:"STUDYSHARE_SSLCOMMERZ_SANDBOX" default:"true"`
	CallbackBaseURL string        `envconfig:"STUDYSHARE_SSLCOMMERZ_CALLBACK_BASE_URL" required:"true"`
	Currency        string        `envconfig:"STUDYSHARE_SSLCOMMERZ_CURRENCY" default:"BDT"`
	RequestTimeout  time.Duration `envconfig:"STUDYSHARE_SSLCOMMERZ_REQUEST_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STUDYSHARE_AUTO_MIGRATE" default:"false"`
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
