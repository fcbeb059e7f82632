package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamo   = "dynamodb"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	QueueSQS       = "sqs"
	QueueJetStream = "jetstream"

	SnapshotS3    = "s3"
	SnapshotLocal = "local"
)

// Receive limits enforced by SQS.
const (
	maxSQSWait       = 20 * time.Second
	maxSQSVisibility = 12 * time.Hour
)

// Config aggregates all runtime settings required by the API and the consumer.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	AWS         AWSConfig
	Store       StoreConfig
	Queue       QueueConfig
	Snapshot    SnapshotConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Publisher   PublisherConfig
	Consumer    ConsumerConfig
	Journal     JournalConfig
	Monitor     MonitorConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type AWSConfig struct {
	EndpointURL  string
	Region       string
	UsePathStyle bool
}

type StoreConfig struct {
	Backend     string
	DynamoTable string
	Timeout     time.Duration
	PageSize    int
}

type QueueConfig struct {
	Backend     string
	Name        string
	NATSURL     string
	Stream      string
	Subject     string
	Durable     string
	DedupWindow time.Duration
}

type SnapshotConfig struct {
	Backend   string
	Bucket    string
	LocalPath string
	Timeout   time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL           string
	Password      string
	DB            int
	DeadLetterMax int
	DeadLetterTTL time.Duration
}

type JWTConfig struct {
	Secret    string
	Algorithm string
}

type PublisherConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type ConsumerConfig struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	Concurrency       int
	OwnerTimeout      time.Duration
}

type JournalConfig struct {
	Enabled        bool
	Path           string
	Schedule       string
	BatchSize      int
	MaxReplays     int
	RetentionHours int
}

type MonitorConfig struct {
	Interval time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults that match a local AWS emulator setup.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "catalog-sync"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		AWS: AWSConfig{
			EndpointURL:  os.Getenv("AWS_ENDPOINT_URL"),
			Region:       getString("AWS_REGION", "us-east-1"),
			UsePathStyle: getBool("AWS_S3_PATH_STYLE", true),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getString("RECORD_STORE", StoreDynamo)),
			DynamoTable: getString("DYNAMO_TABLE", "my-catalog-table"),
			Timeout:     getDuration("STORE_TIMEOUT", 5*time.Second),
			PageSize:    getInt("STORE_PAGE_SIZE", 100),
		},
		Queue: QueueConfig{
			Backend:     strings.ToLower(getString("QUEUE_BACKEND", QueueSQS)),
			Name:        getString("SQS_CATALOG_TOPIC", "catalog-emit.fifo"),
			NATSURL:     getString("NATS_URL", "nats://localhost:4222"),
			Stream:      getString("NATS_STREAM", "CATALOG_EVENTS"),
			Subject:     getString("NATS_SUBJECT", "catalog.events"),
			Durable:     getString("NATS_DURABLE", "catalog-consumer"),
			DedupWindow: getDuration("NATS_DEDUP_WINDOW", 5*time.Minute),
		},
		Snapshot: SnapshotConfig{
			Backend:   strings.ToLower(getString("SNAPSHOT_STORE", SnapshotS3)),
			Bucket:    getString("S3_BUCKET", "catalog-bucket"),
			LocalPath: getString("SNAPSHOT_LOCAL_PATH", "./data/snapshots"),
			Timeout:   getDuration("SNAPSHOT_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "catalog"),
			User:            getString("DB_USER", "catalog"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            getInt("REDIS_DB", 0),
			DeadLetterMax: getInt("DEADLETTER_MAX_ITEMS", 1000),
			DeadLetterTTL: getDuration("DEADLETTER_TTL", 14*24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			Algorithm: getString("JWT_ALGORITHM", "HS256"),
		},
		Publisher: PublisherConfig{
			MaxRetries: getInt("PUBLISH_MAX_RETRIES", 3),
			BaseDelay:  getDuration("PUBLISH_BASE_DELAY", 250*time.Millisecond),
		},
		Consumer: ConsumerConfig{
			MaxMessages:       getInt("CONSUMER_MAX_MESSAGES", 10),
			WaitTime:          getDuration("CONSUMER_WAIT_SECONDS", 10*time.Second),
			VisibilityTimeout: getDuration("CONSUMER_VISIBILITY_SECONDS", 60*time.Second),
			PollInterval:      getDuration("CONSUMER_POLL_INTERVAL", 5*time.Second),
			Concurrency:       getInt("CONSUMER_CONCURRENCY", 1),
			OwnerTimeout:      getDuration("CONSUMER_OWNER_TIMEOUT", 30*time.Second),
		},
		Journal: JournalConfig{
			Enabled:        getBool("JOURNAL_ENABLED", false),
			Path:           getString("JOURNAL_PATH", "./data/journal.db"),
			Schedule:       getString("JOURNAL_REPLAY_SCHEDULE", "@every 30s"),
			BatchSize:      getInt("JOURNAL_BATCH_SIZE", 100),
			MaxReplays:     getInt("JOURNAL_MAX_REPLAYS", 5),
			RetentionHours: getInt("JOURNAL_RETENTION_HOURS", 24),
		},
		Monitor: MonitorConfig{
			Interval: getDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects backend names and consumer bounds the services cannot honour.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreDynamo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("config: unknown RECORD_STORE %q", c.Store.Backend)
	}
	switch c.Queue.Backend {
	case QueueSQS, QueueJetStream:
	default:
		return fmt.Errorf("config: unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}
	switch c.Snapshot.Backend {
	case SnapshotS3, SnapshotLocal:
	default:
		return fmt.Errorf("config: unknown SNAPSHOT_STORE %q", c.Snapshot.Backend)
	}
	if c.Consumer.MaxMessages < 1 || c.Consumer.MaxMessages > 10 {
		return fmt.Errorf("config: CONSUMER_MAX_MESSAGES must be within 1..10, got %d", c.Consumer.MaxMessages)
	}
	if c.Consumer.Concurrency < 1 {
		return fmt.Errorf("config: CONSUMER_CONCURRENCY must be positive, got %d", c.Consumer.Concurrency)
	}
	if c.Queue.Backend == QueueSQS {
		if c.Consumer.WaitTime < 0 || c.Consumer.WaitTime > maxSQSWait {
			return fmt.Errorf("config: CONSUMER_WAIT_SECONDS must be within 0..20s for sqs, got %s", c.Consumer.WaitTime)
		}
		if c.Consumer.VisibilityTimeout < 0 || c.Consumer.VisibilityTimeout > maxSQSVisibility {
			return fmt.Errorf("config: CONSUMER_VISIBILITY_SECONDS must be within 0..12h for sqs, got %s", c.Consumer.VisibilityTimeout)
		}
	}
	if c.Publisher.MaxRetries < 0 {
		return fmt.Errorf("config: PUBLISH_MAX_RETRIES must not be negative, got %d", c.Publisher.MaxRetries)
	}
	return nil
}

// ValidateConsumer rejects settings the snapshot consumer cannot run with.
// An in-memory record store is private to one process, so the consumer
// would overwrite every snapshot with an empty catalog.
func (c *Config) ValidateConsumer() error {
	if c.Store.Backend == StoreMemory {
		return fmt.Errorf("config: RECORD_STORE=%s is only supported by the API process", StoreMemory)
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
