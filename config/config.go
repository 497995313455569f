package config

import (
	"time"
)

type AppConfig struct {
	APIPort           string `env:"PORT,required" envDefault:"12222"`
	APIKey            string `env:"API_KEY,required"`
	TrackingPublicUrl string `env:"TRACKING_PUBLIC_URL" envDefault:"http://localhost:12222"`
	PodName           string `env:"POD_NAME" envDefault:"local"`
	Namespace         string `env:"POD_NAMESPACE" envDefault:"default"`
}

type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"mailtrack.db"`
	Host            string `env:"MAILTRACK_POSTGRES_HOST"`
	Port            string `env:"MAILTRACK_POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"MAILTRACK_POSTGRES_USER"`
	DBName          string `env:"MAILTRACK_POSTGRES_DB_NAME"`
	Password        string `env:"MAILTRACK_POSTGRES_PASSWORD"`
	MaxConn         int    `env:"MAILTRACK_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILTRACK_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILTRACK_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILTRACK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILTRACK_POSTGRES_SSL_MODE" envDefault:"require"`
}

type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	MetricsTTL   time.Duration `env:"REDIS_METRICS_TTL" envDefault:"60s"`
	CacheEnabled bool          `env:"REDIS_CACHE_ENABLED" envDefault:"true"`
}

type RabbitMQConfig struct {
	URL string `env:"RABBITMQ_URL"`
}

type TrackingConfig struct {
	WriteTimeout time.Duration `env:"TRACKING_WRITE_TIMEOUT" envDefault:"2s"`
}

type ImapConfig struct {
	PollInterval    time.Duration `env:"IMAP_POLL_INTERVAL" envDefault:"60s"`
	TickTimeout     time.Duration `env:"IMAP_TICK_TIMEOUT" envDefault:"2m"`
	DialTimeout     time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	BackoffBase     time.Duration `env:"IMAP_BACKOFF_BASE" envDefault:"5s"`
	BackoffMax      time.Duration `env:"IMAP_BACKOFF_MAX" envDefault:"5m"`
	InitialLookback time.Duration `env:"IMAP_INITIAL_LOOKBACK" envDefault:"168h"`
	FetchBatchSize  int           `env:"IMAP_FETCH_BATCH_SIZE" envDefault:"50"`
	LockTTL         time.Duration `env:"IMAP_LOCK_TTL" envDefault:"3m"`
}

type ArchiveConfig struct {
	Enabled         bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	Provider        string `env:"ARCHIVE_PROVIDER" envDefault:"r2"`
	Bucket          string `env:"ARCHIVE_BUCKET" envDefault:"mailtrack-raw"`
	AwsRegion       string `env:"ARCHIVE_AWS_REGION" envDefault:"eu-west-1"`
	R2AccountID     string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"ARCHIVE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ARCHIVE_ACCESS_KEY_SECRET"`
}

type DedupConfig struct {
	Retention time.Duration `env:"DEDUP_RETENTION" envDefault:"720h"`
}
