package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Redis     *RedisConfig
	Worker    *WorkerConfig
	Converter *ConverterConfig
	S3        *S3Config
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type WorkerConfig struct {
	QueueName       string        `envconfig:"QUEUE_NAME" default:"doc-processor"`
	QueuePrefix     string        `envconfig:"QUEUE_PREFIX" default:"bull"`
	Concurrency     int           `envconfig:"DOC_PROCESSOR_CONCURRENCY" default:"1"`
	PoolSize        int           `envconfig:"DOC_PROCESSOR_POOL_SIZE" default:"4"`
	LockDuration    time.Duration `envconfig:"DOC_PROCESSOR_LOCK_DURATION" default:"30s"`
	StalledInterval time.Duration `envconfig:"DOC_PROCESSOR_STALLED_INTERVAL" default:"30s"`
	MaxStalledCount int           `envconfig:"DOC_PROCESSOR_MAX_STALLED_COUNT" default:"1"`
	DrainDelay      time.Duration `envconfig:"DOC_PROCESSOR_DRAIN_DELAY" default:"5s"`
	LogLevel        string        `envconfig:"DOC_PROCESSOR_LOG_LEVEL" default:"info"`
	MetricsAddress  string        `envconfig:"DOC_PROCESSOR_METRICS_ADDRESS" default:":8080"`
	Events          bool          `envconfig:"DOC_PROCESSOR_EVENTS" default:"true"`
}

type ConverterConfig struct {
	MaxChunkTokens int           `envconfig:"DOC_PROCESSOR_MAX_CHUNK_TOKENS" default:"512"`
	MinChunkTokens int           `envconfig:"DOC_PROCESSOR_MIN_CHUNK_TOKENS" default:"32"`
	MaxFileSize    int64         `envconfig:"DOC_PROCESSOR_MAX_FILE_SIZE" default:"104857600"`
	HTTPTimeout    time.Duration `envconfig:"DOC_PROCESSOR_HTTP_TIMEOUT" default:"60s"`
}

type S3Config struct {
	Endpoint  string `envconfig:"DOC_PROCESSOR_S3_ENDPOINT" default:""`
	AccessKey string `envconfig:"DOC_PROCESSOR_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"DOC_PROCESSOR_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"DOC_PROCESSOR_S3_USE_SSL" default:"false"`
}

// New reads the configuration from the environment. The result is meant
// to be built once at startup and handed down explicitly.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.QueueName == "" {
		return fmt.Errorf("queue name must not be empty")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.LockDuration <= 0 {
		return fmt.Errorf("lock duration must be positive, got %s", c.Worker.LockDuration)
	}
	return nil
}

// RedisAddress returns the host:port pair of the broker.
func (c *Config) RedisAddress() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}

// String never prints secrets.
func (c *Config) String() string {
	return fmt.Sprintf("redis=%s db=%d queue=%s:%s concurrency=%d pool=%d lock=%s metrics=%q events=%t",
		c.RedisAddress(), c.Redis.DB, c.Worker.QueuePrefix, c.Worker.QueueName,
		c.Worker.Concurrency, c.Worker.PoolSize, c.Worker.LockDuration, c.Worker.MetricsAddress, c.Worker.Events)
}
