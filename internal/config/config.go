package config

import (
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/redis"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every configuration value of the binaries. Only this struct
// is read at runtime, no direct access to env or any other source.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=lending-admin"`
	AppDebug            bool   `env:"APP_DEBUG,default=false"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR,default=:8000"`
	HttpServerReadTimeout     time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=10s"`
	HttpServerWriteTimeout    time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=10s"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE,default=16384"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE,default=16384"`
	HttpRequestTimeout        time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=10s"`
	CorsAllowOrigin           string        `env:"CORS_ALLOW_ORIGIN,default=*"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST,default=localhost"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST,default=localhost"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSLMODE,default=disable"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=lending:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=lending_admin"`

	JwtSecret       string        `env:"JWT_SECRET"`
	JwtAccessTTL    time.Duration `env:"JWT_ACCESS_TTL,default=8h"`
	JwtRefreshTTL   time.Duration `env:"JWT_REFRESH_TTL,default=24h"`
	LoginMaxFails   int           `env:"LOGIN_MAX_FAILURES,default=5"`
	LoginLockWindow time.Duration `env:"LOGIN_LOCK_WINDOW,default=15m"`
	TenantCacheSize int           `env:"TENANT_CACHE_SIZE,default=1024"`
	TenantCacheTTL  time.Duration `env:"TENANT_CACHE_TTL,default=5m"`

	QueueName              string        `env:"QUEUE_NAME,default=communications"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=dispatchers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME,default=dispatcher-1"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=200ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=50"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	DispatcherConsumers    int           `env:"DISPATCHER_CONSUMERS,default=4"`
	DispatcherWorkers      int           `env:"DISPATCHER_WORKERS,default=32"`

	ProviderPrimaryUrl   string `env:"PROVIDER_PRIMARY_URL"`
	ProviderSecondaryUrl string `env:"PROVIDER_SECONDARY_URL"`
	ProviderBackupUrl    string `env:"PROVIDER_BACKUP_URL"`

	SmtpHost string `env:"SMTP_HOST"`
	SmtpPort int    `env:"SMTP_PORT,default=587"`
	SmtpUser string `env:"SMTP_USER"`
	SmtpPass string `env:"SMTP_PASS"`
	SmtpFrom string `env:"SMTP_FROM,default=no-reply@lending.local"`

	S3Endpoint      string        `env:"S3_ENDPOINT"`
	S3Region        string        `env:"S3_REGION,default=us-east-1"`
	S3Bucket        string        `env:"S3_BUCKET,default=documents"`
	S3AccessKey     string        `env:"S3_ACCESS_KEY"`
	S3SecretKey     string        `env:"S3_SECRET_KEY"`
	S3LinkExpireIn  time.Duration `env:"S3_LINK_EXPIRE_IN,default=15m"`
	DocumentMaxSize int64         `env:"DOCUMENT_MAX_BYTES,default=10485760"`

	WebhookSecret string `env:"WEBHOOK_SECRET"`

	DashboardRefreshSpec string        `env:"DASHBOARD_REFRESH_SPEC,default=@every 15m"`
	ReportCacheTTL       time.Duration `env:"REPORT_CACHE_TTL,default=0s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	c := &Config{}
	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}
	if c.JwtSecret == "" {
		if c.AppEnv != "dev" && c.AppEnv != "test" {
			return errors.New("JWT_SECRET must be set outside dev")
		}
		c.JwtSecret = "dev-secret-change-me"
	}

	config = c
	return nil
}

// Set replaces the singleton, used by tests and tools that build config in code.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) CorsOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CorsAllowOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Providers() []string {
	var out []string
	for _, u := range []string{c.ProviderPrimaryUrl, c.ProviderSecondaryUrl, c.ProviderBackupUrl} {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c *Config) Redis(clientName string) *redis.Options {
	return &redis.Options{
		Addrs:      strings.Split(c.RedisAddr, ","),
		ClientName: clientName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}

// ArgEnvPath returns the value of a --env=<file> argument, if any.
func ArgEnvPath(args []string) string {
	for _, v := range args {
		if p, ok := strings.CutPrefix(v, "--env="); ok {
			return p
		}
	}
	return ""
}
