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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Store        StoreConfig
	Stripe       StripeConfig
	Mail         MailConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FASHIONMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"FASHIONMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FASHIONMARKET_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FASHIONMARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FASHIONMARKET_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists the storefront and admin origins allowed to call the API.
	CORSOrigins []string `envconfig:"FASHIONMARKET_CORS_ALLOWED_ORIGINS"`
	// MetricsAddr is where background workers serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"FASHIONMARKET_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"FASHIONMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FASHIONMARKET_DB_DSN"`
	Driver string `envconfig:"FASHIONMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FASHIONMARKET_DB_HOST"`
	Port     int    `envconfig:"FASHIONMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"FASHIONMARKET_DB_USER"`
	Password string `envconfig:"FASHIONMARKET_DB_PASSWORD"`
	Name     string `envconfig:"FASHIONMARKET_DB_NAME"`
	SSLMode  string `envconfig:"FASHIONMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FASHIONMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FASHIONMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FASHIONMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FASHIONMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"FASHIONMARKET_DB_CONNECT_TIMEOUT" default:"10s"`
	SlowQuery       time.Duration `envconfig:"FASHIONMARKET_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FASHIONMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FASHIONMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"FASHIONMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"FASHIONMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FASHIONMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FASHIONMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FASHIONMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FASHIONMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FASHIONMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
	// IdempotencyTTL bounds how long a stored idempotent response is replayed.
	IdempotencyTTL time.Duration `envconfig:"FASHIONMARKET_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// JWTConfig verifies access tokens minted by the storefront auth service.
type JWTConfig struct {
	Secret string `envconfig:"FASHIONMARKET_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FASHIONMARKET_JWT_ISSUER" required:"true"`
}

// RateLimitConfig throttles the public waitlist endpoint per client IP and
// per email address.
type RateLimitConfig struct {
	WaitlistWindow     time.Duration `envconfig:"FASHIONMARKET_WAITLIST_RATE_WINDOW" default:"1h"`
	WaitlistIPLimit    int           `envconfig:"FASHIONMARKET_WAITLIST_RATE_IP_LIMIT" default:"30"`
	WaitlistEmailLimit int           `envconfig:"FASHIONMARKET_WAITLIST_RATE_EMAIL_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FASHIONMARKET_AUTO_MIGRATE" default:"false"`
	// SendEmails disables the SendGrid transport when false; messages are logged instead.
	SendEmails bool `envconfig:"FASHIONMARKET_FEATURE_SEND_EMAILS" default:"true"`
}

// StoreConfig holds the commercial constants used by order totals and returns.
type StoreConfig struct {
	Currency                   string `envconfig:"FASHIONMARKET_STORE_CURRENCY" default:"EUR"`
	TaxRatePercent             int    `envconfig:"FASHIONMARKET_STORE_TAX_RATE_PERCENT" default:"21"`
	FreeShippingThresholdCents int    `envconfig:"FASHIONMARKET_STORE_FREE_SHIPPING_THRESHOLD_CENTS" default:"10000"`
	StandardShippingCents      int    `envconfig:"FASHIONMARKET_STORE_STANDARD_SHIPPING_CENTS" default:"499"`
	ReturnWindowDays           int    `envconfig:"FASHIONMARKET_STORE_RETURN_WINDOW_DAYS" default:"30"`
	SupportEmail               string `envconfig:"FASHIONMARKET_STORE_SUPPORT_EMAIL" default:"support@fashionmarket.com"`
}

// ReturnWindow returns the configured return window as a duration.
func (s StoreConfig) ReturnWindow() time.Duration {
	return time.Duration(s.ReturnWindowDays) * 24 * time.Hour
}

func (s StoreConfig) validate() error {
	switch {
	case s.TaxRatePercent < 0 || s.TaxRatePercent > 100:
		return fmt.Errorf("%s must be between 0 and 100", EnvStoreTaxRate)
	case s.FreeShippingThresholdCents < 0:
		return fmt.Errorf("%s must be non-negative", EnvStoreFreeShipping)
	case s.StandardShippingCents < 0:
		return fmt.Errorf("%s must be non-negative", EnvStoreShipping)
	case s.ReturnWindowDays <= 0:
		return fmt.Errorf("%s must be positive", EnvStoreReturnWindow)
	}
	return nil
}

type StripeConfig struct {
	APIKey  string        `envconfig:"FASHIONMARKET_STRIPE_API_KEY"`
	Secret  string        `envconfig:"FASHIONMARKET_STRIPE_SECRET"`
	Env     string        `envconfig:"FASHIONMARKET_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"FASHIONMARKET_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MailConfig struct {
	SendgridAPIKey string        `envconfig:"FASHIONMARKET_SENDGRID_API_KEY"`
	FromEmail      string        `envconfig:"FASHIONMARKET_SENDGRID_FROM_EMAIL" default:"no-reply@fashionmarket.com"`
	FromName       string        `envconfig:"FASHIONMARKET_SENDGRID_FROM_NAME" default:"FashionMarket"`
	Timeout        time.Duration `envconfig:"FASHIONMARKET_MAIL_TIMEOUT" default:"10s"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"FASHIONMARKET_GCP_PROJECT_ID"`
	DomainTopic string `envconfig:"FASHIONMARKET_PUBSUB_DOMAIN_TOPIC" default:"fm-domain-events"`
	// StockTopic carries restock events when set; otherwise they share the
	// domain topic.
	StockTopic string `envconfig:"FASHIONMARKET_PUBSUB_STOCK_TOPIC"`
}

// Topics lists the distinct topics events can be routed to, domain first.
func (p PubSubConfig) Topics() []string {
	topics := []string{p.DomainTopic}
	if stock := strings.TrimSpace(p.StockTopic); stock != "" && stock != p.DomainTopic {
		topics = append(topics, stock)
	}
	return topics
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FASHIONMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FASHIONMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FASHIONMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"FASHIONMARKET_CRON_INTERVAL" default:"1m"`
	LockTTL             time.Duration `envconfig:"FASHIONMARKET_CRON_LOCK_TTL" default:"55s"`
	InvoiceReconcileAge time.Duration `envconfig:"FASHIONMARKET_CRON_INVOICE_RECONCILE_AGE" default:"5m"`
	WaitlistRetention   time.Duration `envconfig:"FASHIONMARKET_CRON_WAITLIST_RETENTION" default:"2160h"`
	OutboxRetention     time.Duration `envconfig:"FASHIONMARKET_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention        time.Duration `envconfig:"FASHIONMARKET_CRON_DLQ_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
