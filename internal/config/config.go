// Package config loads the service configuration from an optional YAML file
// and PI_* environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Import   ImportConfig   `yaml:"import"`
	Worker   WorkerConfig   `yaml:"worker"`
	Queue    QueueConfig    `yaml:"queue"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Progress ProgressConfig `yaml:"progress"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BodyLimit       string        `yaml:"body_limit"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

type ImportConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	QueueSize         int           `yaml:"queue_size"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	RedispatchAfter   time.Duration `yaml:"redispatch_after"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type QueueConfig struct {
	// Driver is memory or kafka.
	Driver string `yaml:"driver"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ProgressConfig struct {
	// Mode is derived (count prospects by file) or counter (done_rows).
	Mode string `yaml:"mode"`
}

// Load reads path when it is non-empty, then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BodyLimit:       "50M",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		Storage: StorageConfig{
			Dir: "./uploads",
		},
		Import: ImportConfig{
			BatchSize: 1000,
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			QueueSize:         256,
			JobTimeout:        30 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			SweepInterval:     30 * time.Second,
			RedispatchAfter:   time.Minute,
			StaleAfter:        5 * time.Minute,
		},
		Queue: QueueConfig{
			Driver: "memory",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "prospect-import-tasks",
			ConsumerGroup: "prospect-import-workers",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  2 * time.Second,
		},
		Auth: AuthConfig{
			Issuer: "prospect-import",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Progress: ProgressConfig{
			Mode: "derived",
		},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, errors.New("import.batch_size must be positive"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("worker.concurrency must be positive"))
	}
	if c.Worker.JobTimeout <= 0 {
		errs = append(errs, errors.New("worker.job_timeout must be positive"))
	}
	if c.Worker.StaleAfter <= 0 || c.Worker.SweepInterval <= 0 {
		errs = append(errs, errors.New("worker.stale_after and worker.sweep_interval must be positive"))
	}
	if c.Worker.HeartbeatInterval <= 0 || c.Worker.HeartbeatInterval >= c.Worker.StaleAfter {
		errs = append(errs, errors.New("worker.heartbeat_interval must be positive and shorter than worker.stale_after"))
	}
	switch c.Queue.Driver {
	case "memory":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.ConsumerGroup == "" {
			errs = append(errs, errors.New("kafka.brokers, kafka.topic and kafka.consumer_group are required for the kafka driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.driver %q must be memory or kafka", c.Queue.Driver))
	}
	if c.Progress.Mode != "derived" && c.Progress.Mode != "counter" {
		errs = append(errs, fmt.Errorf("progress.mode %q must be derived or counter", c.Progress.Mode))
	}

	return errors.Join(errs...)
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PI_SERVER_PORT", &cfg.Server.Port)
	str("PI_SERVER_BODY_LIMIT", &cfg.Server.BodyLimit)
	str("PI_DATABASE_URL", &cfg.Database.URL)
	flag("PI_DATABASE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)
	str("PI_STORAGE_DIR", &cfg.Storage.Dir)
	num("PI_IMPORT_BATCH_SIZE", &cfg.Import.BatchSize)
	num("PI_WORKER_CONCURRENCY", &cfg.Worker.Concurrency)
	dur("PI_WORKER_JOB_TIMEOUT", &cfg.Worker.JobTimeout)
	dur("PI_WORKER_HEARTBEAT_INTERVAL", &cfg.Worker.HeartbeatInterval)
	dur("PI_WORKER_SWEEP_INTERVAL", &cfg.Worker.SweepInterval)
	dur("PI_WORKER_STALE_AFTER", &cfg.Worker.StaleAfter)
	str("PI_QUEUE_DRIVER", &cfg.Queue.Driver)
	if v := os.Getenv("PI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	str("PI_KAFKA_TOPIC", &cfg.Kafka.Topic)
	flag("PI_REDIS_ENABLED", &cfg.Redis.Enabled)
	str("PI_REDIS_ADDR", &cfg.Redis.Addr)
	str("PI_REDIS_PASSWORD", &cfg.Redis.Password)
	str("PI_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("PI_LOGGING_LEVEL", &cfg.Logging.Level)
	flag("PI_LOGGING_DEV", &cfg.Logging.Dev)
	str("PI_PROGRESS_MODE", &cfg.Progress.Mode)

	return errors.Join(errs...)
}
