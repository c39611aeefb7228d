package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/crm/internal/jobs"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`

	// KafkaBrokers — список брокеров через запятую; пустое значение отключает события.
	KafkaBrokers         string        `yaml:"kafka_brokers"`
	KafkaTopic           string        `yaml:"kafka_topic"`
	KafkaDeadLetterTopic string        `yaml:"kafka_dead_letter_topic"`
	OutboxPollInterval   time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize      int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts    int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay     time.Duration `yaml:"outbox_retry_delay"`

	// RedisAddr включает блокировку задач между репликами.
	RedisAddr string `yaml:"redis_addr"`

	JobsEnabled       bool          `yaml:"jobs_enabled"`
	JobLockTTL        time.Duration `yaml:"job_lock_ttl"`
	HeartbeatSchedule string        `yaml:"heartbeat_schedule"`
	LowStockSchedule  string        `yaml:"low_stock_schedule"`
	ReportSchedule    string        `yaml:"report_schedule"`
	RemindersSchedule string        `yaml:"reminders_schedule"`
	HeartbeatLogPath  string        `yaml:"heartbeat_log_path"`
	LowStockLogPath   string        `yaml:"low_stock_log_path"`
	ReportLogPath     string        `yaml:"report_log_path"`
	RemindersLogPath  string        `yaml:"reminders_log_path"`
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8000",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaTopic:           kafka.TopicCRMEvents,
		KafkaDeadLetterTopic: kafka.TopicCRMDeadLetter,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      50,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     100 * time.Millisecond,

		JobsEnabled:       true,
		JobLockTTL:        30 * time.Minute,
		HeartbeatSchedule: jobs.DefaultHeartbeatSchedule,
		LowStockSchedule:  jobs.DefaultLowStockSchedule,
		ReportSchedule:    jobs.DefaultReportSchedule,
		RemindersSchedule: jobs.DefaultRemindersSchedule,
		HeartbeatLogPath:  "/tmp/crm_heartbeat_log.txt",
		LowStockLogPath:   "/tmp/low_stock_updates_log.txt",
		ReportLogPath:     "/tmp/crm_report_log.txt",
		RemindersLogPath:  "/tmp/order_reminders_log.txt",
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем .env,
// YAML-файл из CRM_CONFIG_FILE и переменные окружения.
func LoadConfig(logger *log.Entry) (Config, error) {
	if logger == nil {
		logger = log.WithField("component", "config")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warn("failed to read .env file")
	}

	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("CRM_CONFIG_FILE")); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return Config{}, err
		}
	}

	cfg, warnings := ConfigFromEnv(cfg, os.LookupEnv)
	for _, w := range warnings {
		logger.Warn(w)
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ConfigFromEnv накладывает переменные окружения на base. Нераспознанные значения
// не применяются и возвращаются как предупреждения.
func ConfigFromEnv(base Config, lookup func(string) (string, bool)) (Config, []string) {
	cfg := base
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a boolean", key, v))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a positive integer", key, v))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || parsed < 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a duration", key, v))
			return
		}
		*dst = parsed
	}

	str("CRM_HTTP_ADDR", &cfg.HTTPAddr)
	str("CRM_GRPC_ADDR", &cfg.GRPCAddr)
	str("CRM_METRICS_ADDR", &cfg.MetricsAddr)
	str("CRM_LOG_LEVEL", &cfg.LogLevel)

	str("CRM_STORAGE_DRIVER", &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str("CRM_POSTGRES_DSN", &cfg.PostgresDSN)
	boolean("CRM_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)

	str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("CRM_KAFKA_TOPIC", &cfg.KafkaTopic)
	str("CRM_KAFKA_DLQ_TOPIC", &cfg.KafkaDeadLetterTopic)
	duration("CRM_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("CRM_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("CRM_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("CRM_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	str("REDIS_ADDR", &cfg.RedisAddr)

	boolean("CRM_JOBS_ENABLED", &cfg.JobsEnabled)
	duration("CRM_JOB_LOCK_TTL", &cfg.JobLockTTL)
	str("CRM_HEARTBEAT_SCHEDULE", &cfg.HeartbeatSchedule)
	str("CRM_LOW_STOCK_SCHEDULE", &cfg.LowStockSchedule)
	str("CRM_REPORT_SCHEDULE", &cfg.ReportSchedule)
	str("CRM_REMINDERS_SCHEDULE", &cfg.RemindersSchedule)
	str("CRM_HEARTBEAT_LOG", &cfg.HeartbeatLogPath)
	str("CRM_LOW_STOCK_LOG", &cfg.LowStockLogPath)
	str("CRM_REPORT_LOG", &cfg.ReportLogPath)
	str("CRM_REMINDERS_LOG", &cfg.RemindersLogPath)

	return cfg, warnings
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("CRM_POSTGRES_DSN is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox batch size and max attempts must be positive"))
	}

	if c.JobsEnabled {
		for _, spec := range []string{c.HeartbeatSchedule, c.LowStockSchedule, c.ReportSchedule, c.RemindersSchedule} {
			if err := jobs.ValidateSchedule(spec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Brokers разбирает KafkaBrokers в список.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
