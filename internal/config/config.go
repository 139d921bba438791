// Package config resolves server settings from flags, environment variables
// and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"

	PublisherNone  = "none"
	PublisherRedis = "redis"
	PublisherAMQP  = "amqp"
	PublisherKafka = "kafka"
)

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

// DSN builds a connection string from the individual settings.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

type Redis struct {
	Address  string
	Password string
	Channel  string
}

type AMQP struct {
	URL      string
	Exchange string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Config struct {
	Host     string
	Port     int
	LogLevel string

	DatabaseType string
	DatabaseURL  string
	Postgres     Postgres

	DefaultPollDuration time.Duration
	ArchiveTimeout      time.Duration
	AllowedOrigins      []string
	SendBuffer          int

	ResultsPublisher string
	Redis            Redis
	AMQP             AMQP
	Kafka            Kafka

	MetricsEnabled bool

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads .env (when present) and parses args. Environment variables
// provide the defaults for every flag.
func Load(args []string) (Config, error) {
	loaded := godotenv.Load() == nil

	cfg, err := Parse(args)
	if err != nil {
		return Config{}, err
	}
	cfg.EnvFileLoaded = loaded
	return cfg, nil
}

func Parse(args []string) (Config, error) {
	var (
		cfg                      Config
		origins, brokers         string
		pollSeconds, archiveSecs int
		envErrs                  []error
	)
	env := envReader{errs: &envErrs}

	fs := flag.NewFlagSet("livepoll", flag.ContinueOnError)

	fs.StringVar(&cfg.Host, "host", env.String("HOST", "0.0.0.0"), "Listen host")
	fs.IntVar(&cfg.Port, "port", env.Int("PORT", 8080), "Listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", env.String("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	fs.StringVar(&cfg.DatabaseType, "db-type", env.String("DATABASE_TYPE", DatabaseMemory), "Archive store (memory, postgres or sqlite)")
	fs.StringVar(&cfg.DatabaseURL, "db-url", env.String("DATABASE_URL", ""), "Database URL or sqlite file path")
	fs.StringVar(&cfg.Postgres.Host, "db-host", env.String("POSTGRES_HOST", "localhost"), "Database host")
	fs.StringVar(&cfg.Postgres.Port, "db-port", env.String("POSTGRES_PORT", "5432"), "Database port")
	fs.StringVar(&cfg.Postgres.User, "db-user", env.String("POSTGRES_USER", ""), "Database user")
	fs.StringVar(&cfg.Postgres.Password, "db-pass", env.String("POSTGRES_PASSWORD", ""), "Database password")
	fs.StringVar(&cfg.Postgres.DB, "db-name", env.String("POSTGRES_DB", ""), "Database name")

	fs.IntVar(&pollSeconds, "default-poll-seconds", env.Int("DEFAULT_POLL_SECONDS", 60), "Poll duration used when a poll does not set one")
	fs.IntVar(&archiveSecs, "archive-timeout-seconds", env.Int("ARCHIVE_TIMEOUT_SECONDS", 10), "Timeout for a single archive write")
	fs.StringVar(&origins, "allowed-origins", env.String("ALLOWED_ORIGINS", "*"), "Comma separated list of allowed origins")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", env.Int("SEND_BUFFER", 64), "Outbound frames queued per connection")

	fs.StringVar(&cfg.ResultsPublisher, "results-publisher", env.String("RESULTS_PUBLISHER", PublisherNone), "Where ended polls are published (none, redis, amqp or kafka)")
	fs.StringVar(&cfg.Redis.Address, "redis-address", env.String("REDIS_ADDRESS", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.Redis.Password, "redis-password", env.String("REDIS_PASSWORD", ""), "Redis password")
	fs.StringVar(&cfg.Redis.Channel, "redis-channel", env.String("REDIS_CHANNEL", "livepoll.results"), "Redis pub/sub channel")
	fs.StringVar(&cfg.AMQP.URL, "amqp-url", env.String("AMQP_URL", ""), "AMQP broker URL")
	fs.StringVar(&cfg.AMQP.Exchange, "amqp-exchange", env.String("AMQP_EXCHANGE", "livepoll.results"), "AMQP fanout exchange")
	fs.StringVar(&brokers, "kafka-brokers", env.String("KAFKA_BROKERS", ""), "Comma separated Kafka brokers")
	fs.StringVar(&cfg.Kafka.Topic, "kafka-topic", env.String("KAFKA_TOPIC", "livepoll.results"), "Kafka topic")

	fs.BoolVar(&cfg.MetricsEnabled, "metrics", env.Bool("METRICS_ENABLED", true), "Expose Prometheus metrics at /metrics")

	if err := errors.Join(envErrs...); err != nil {
		return Config{}, err
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.DatabaseType = strings.ToLower(strings.TrimSpace(cfg.DatabaseType))
	cfg.ResultsPublisher = strings.ToLower(strings.TrimSpace(cfg.ResultsPublisher))
	cfg.DefaultPollDuration = time.Duration(pollSeconds) * time.Second
	cfg.ArchiveTimeout = time.Duration(archiveSecs) * time.Second
	cfg.AllowedOrigins = splitList(origins)
	cfg.Kafka.Brokers = splitList(brokers)

	switch cfg.DatabaseType {
	case DatabasePostgres:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = cfg.Postgres.DSN()
		}
	case DatabaseSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "livepoll.db"
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	switch c.DatabaseType {
	case DatabaseMemory, DatabaseSQLite:
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres requires DATABASE_URL or POSTGRES_* settings"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType))
	}

	if c.DefaultPollDuration < 10*time.Second || c.DefaultPollDuration > 300*time.Second {
		errs = append(errs, fmt.Errorf("DEFAULT_POLL_SECONDS must be between 10 and 300, got %s", c.DefaultPollDuration))
	}
	if c.ArchiveTimeout <= 0 {
		errs = append(errs, errors.New("ARCHIVE_TIMEOUT_SECONDS must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER must be positive"))
	}

	switch c.ResultsPublisher {
	case PublisherNone, "":
	case PublisherRedis:
		if c.Redis.Address == "" || c.Redis.Channel == "" {
			errs = append(errs, errors.New("redis publisher requires REDIS_ADDRESS and REDIS_CHANNEL"))
		}
	case PublisherAMQP:
		if c.AMQP.URL == "" || c.AMQP.Exchange == "" {
			errs = append(errs, errors.New("amqp publisher requires AMQP_URL and AMQP_EXCHANGE"))
		}
	case PublisherKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka publisher requires KAFKA_BROKERS and KAFKA_TOPIC"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported RESULTS_PUBLISHER %q", c.ResultsPublisher))
	}

	return errors.Join(errs...)
}

type envReader struct {
	errs *[]error
}

func (e envReader) String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (e envReader) Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s env variable: %q", key, v))
		return def
	}
	return n
}

func (e envReader) Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s env variable: %q", key, v))
		return def
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
