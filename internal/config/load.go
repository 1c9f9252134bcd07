package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SERVIMED"

// setDefaults registers a default for every key so that environment variables
// are picked up by Unmarshal even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("store.backend", "memory")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.size", 100)
	v.SetDefault("queue.amqp_url", "")
	v.SetDefault("queue.amqp_queue", "servimed.tasks")

	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.task_timeout", 5*time.Minute)
	v.SetDefault("worker.stuck_task_age", 30*time.Minute)
	v.SetDefault("worker.stuck_check_interval", 5*time.Minute)

	v.SetDefault("servimed.base_url", "")
	v.SetDefault("servimed.token_endpoint", "/oauth/token")
	v.SetDefault("servimed.products_endpoint", "/produto")
	v.SetDefault("servimed.client_id", "")
	v.SetDefault("servimed.client_secret", "")
	v.SetDefault("servimed.grant_type", "password")
	v.SetDefault("servimed.scope", "")
	v.SetDefault("servimed.auth_timeout", 30*time.Second)
	v.SetDefault("servimed.extract_timeout", 30*time.Second)

	v.SetDefault("orders.base_url", "")
	v.SetDefault("orders.supplier_code", "SERVIMED_001")
	v.SetDefault("orders.timeout", 30*time.Second)
	v.SetDefault("orders.fallback_on_create_failure", true)
	v.SetDefault("orders.default_unit_price", 10.50)

	v.SetDefault("callback.timeout", 60*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", 5*time.Second)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 30*time.Minute)

	v.SetDefault("scraping.fail_on_empty", false)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules that tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if cfg.Store.Backend == "postgres" && cfg.Database.URL == "" {
		return errors.New("validation failed: database.url is required for the postgres store")
	}
	if cfg.Queue.Backend == "rabbitmq" && cfg.Queue.AMQPURL == "" {
		return errors.New("validation failed: queue.amqp_url is required for the rabbitmq queue")
	}

	return nil
}
