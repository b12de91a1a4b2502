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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Sweep        SweepConfig
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
	Env          string `envconfig:"SHOPCO_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPCO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPCO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPCO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPCO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPCO_DB_DSN"`
	Driver string `envconfig:"SHOPCO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPCO_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCO_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCO_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCO_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPCO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPCO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPCO_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCO_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig bounds the reservation window for pending orders.
type CheckoutConfig struct {
	ReservationWindow time.Duration `envconfig:"SHOPCO_CHECKOUT_RESERVATION_WINDOW" default:"8m"`
}

// SweepConfig drives the schedule sweeper cadence and retention.
type SweepConfig struct {
	Interval        time.Duration `envconfig:"SHOPCO_SWEEP_INTERVAL" default:"5s"`
	BatchSize       int           `envconfig:"SHOPCO_SWEEP_BATCH_SIZE" default:"100"`
	LockTTL         time.Duration `envconfig:"SHOPCO_SWEEP_LOCK_TTL" default:"30s"`
	ClaimLease      time.Duration `envconfig:"SHOPCO_SWEEP_CLAIM_LEASE" default:"1m"`
	EntryRetention  time.Duration `envconfig:"SHOPCO_SWEEP_ENTRY_RETENTION" default:"24h"`
	OutboxRetention time.Duration `envconfig:"SHOPCO_SWEEP_OUTBOX_RETENTION" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPCO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPCO_AUTO_MIGRATE" default:"false"`
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
