package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "NAIRAMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "NAIRAMART_DB_DSN"
	EnvDBHost = "NAIRAMART_DB_HOST"
	EnvDBUser = "NAIRAMART_DB_USER"
	EnvDBName = "NAIRAMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Settlement   SettlementConfig
	RateLimit    RateLimitConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"NAIRAMART_APP_ENV" required:"true"`
	Port         string `envconfig:"NAIRAMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NAIRAMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NAIRAMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NAIRAMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NAIRAMART_DB_DSN"`
	Driver string `envconfig:"NAIRAMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NAIRAMART_DB_HOST"`
	LegacyPort     int    `envconfig:"NAIRAMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NAIRAMART_DB_USER"`
	LegacyPassword string `envconfig:"NAIRAMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"NAIRAMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"NAIRAMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NAIRAMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NAIRAMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NAIRAMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NAIRAMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NAIRAMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NAIRAMART_REDIS_ADDR"`
	Password     string        `envconfig:"NAIRAMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NAIRAMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NAIRAMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NAIRAMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NAIRAMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NAIRAMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NAIRAMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NAIRAMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NAIRAMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NAIRAMART_JWT_EXPIRATION_MINUTES" required:"true"`
}

// SettlementConfig tunes escrow hold and payout arithmetic. The return window
// is the tier-independent default; per-tier adjustments stack on top of it
// when release rules are snapshotted.
type SettlementConfig struct {
	ReturnWindowDays      int     `envconfig:"NAIRAMART_SETTLEMENT_RETURN_WINDOW_DAYS" default:"7"`
	NewStoreExtraHoldDays int     `envconfig:"NAIRAMART_SETTLEMENT_NEW_STORE_EXTRA_HOLD_DAYS" default:"7"`
	FlaggedExtraHoldDays  int     `envconfig:"NAIRAMART_SETTLEMENT_FLAGGED_EXTRA_HOLD_DAYS" default:"14"`
	TrustedHoldDays       int     `envconfig:"NAIRAMART_SETTLEMENT_TRUSTED_HOLD_DAYS" default:"3"`
	CommissionPercent     float64 `envconfig:"NAIRAMART_SETTLEMENT_COMMISSION_PERCENT" default:"10"`
	FlatFeeKobo           int64   `envconfig:"NAIRAMART_SETTLEMENT_FLAT_FEE_KOBO" default:"10000"`
	MaxReturnEvidence     int     `envconfig:"NAIRAMART_SETTLEMENT_MAX_RETURN_EVIDENCE" default:"4"`
}

// RateLimitConfig bounds per-actor request rates on authenticated routes.
type RateLimitConfig struct {
	Requests int64         `envconfig:"NAIRAMART_RATE_LIMIT_REQUESTS" default:"120"`
	Window   time.Duration `envconfig:"NAIRAMART_RATE_LIMIT_WINDOW" default:"1m"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"NAIRAMART_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL   string        `envconfig:"NAIRAMART_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"NAIRAMART_PAYSTACK_TIMEOUT" default:"10s"`
}

type FlutterwaveConfig struct {
	SecretKey  string        `envconfig:"NAIRAMART_FLUTTERWAVE_SECRET_KEY" required:"true"`
	SecretHash string        `envconfig:"NAIRAMART_FLUTTERWAVE_SECRET_HASH" required:"true"`
	BaseURL    string        `envconfig:"NAIRAMART_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com"`
	Timeout    time.Duration `envconfig:"NAIRAMART_FLUTTERWAVE_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NAIRAMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NAIRAMART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"NAIRAMART_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"NAIRAMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"NAIRAMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"NAIRAMART_PUBSUB_SETTLEMENT_TOPIC" required:"true"`
	SettlementSubscription string `envconfig:"NAIRAMART_PUBSUB_SETTLEMENT_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NAIRAMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NAIRAMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NAIRAMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig paces the release worker's scheduled cycle. The sweep interval
// bounds how stale a due fund release can get before it is picked up.
type CronConfig struct {
	Interval                  time.Duration `envconfig:"NAIRAMART_CRON_INTERVAL" default:"15m"`
	ReleaseBatchSize          int           `envconfig:"NAIRAMART_CRON_RELEASE_BATCH_SIZE" default:"100"`
	OutboxRetentionDays       int           `envconfig:"NAIRAMART_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"NAIRAMART_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
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
