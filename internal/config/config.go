package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"    validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Servimed ServimedConfig `mapstructure:"servimed" validate:"required"`
	Orders   OrdersConfig   `mapstructure:"orders"   validate:"required"`
	Callback CallbackConfig `mapstructure:"callback" validate:"required"`
	Retry    RetryConfig    `mapstructure:"retry"    validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Scraping ScrapingConfig `mapstructure:"scraping"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format"       validate:"required,oneof=json text"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is required only when the postgres store backend is selected.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// StoreConfig selects the task record store implementation.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory postgres"`
}

// QueueConfig selects and sizes the task queue.
type QueueConfig struct {
	Backend   string `mapstructure:"backend"    validate:"required,oneof=memory rabbitmq"`
	Size      int    `mapstructure:"size"       validate:"gt=0"`
	AMQPURL   string `mapstructure:"amqp_url"   validate:"omitempty,url"`
	AMQPQueue string `mapstructure:"amqp_queue" validate:"required"`
}

// WorkerConfig controls the worker pool and stuck-task supervision.
type WorkerConfig struct {
	Count              int           `mapstructure:"count"                validate:"gt=0"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout"         validate:"gt=0"`
	StuckTaskAge       time.Duration `mapstructure:"stuck_task_age"       validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
}

// ServimedConfig points at the supplier identity and catalog API.
type ServimedConfig struct {
	BaseURL          string        `mapstructure:"base_url"          validate:"required,url"`
	TokenEndpoint    string        `mapstructure:"token_endpoint"    validate:"required"`
	ProductsEndpoint string        `mapstructure:"products_endpoint" validate:"required"`
	ClientID         string        `mapstructure:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret"`
	GrantType        string        `mapstructure:"grant_type"        validate:"required"`
	Scope            string        `mapstructure:"scope"`
	AuthTimeout      time.Duration `mapstructure:"auth_timeout"      validate:"gt=0"`
	ExtractTimeout   time.Duration `mapstructure:"extract_timeout"   validate:"gt=0"`
}

// OrdersConfig points at the order-management API.
type OrdersConfig struct {
	BaseURL                 string        `mapstructure:"base_url"                   validate:"required,url"`
	SupplierCode            string        `mapstructure:"supplier_code"              validate:"required"`
	Timeout                 time.Duration `mapstructure:"timeout"                    validate:"gt=0"`
	FallbackOnCreateFailure bool          `mapstructure:"fallback_on_create_failure"`
	DefaultUnitPrice        float64       `mapstructure:"default_unit_price"         validate:"gte=0"`
}

// CallbackConfig controls outbound callback delivery.
type CallbackConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RetryConfig controls retries of transient failures on extraction and
// order registration.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	Delay       time.Duration `mapstructure:"delay"        validate:"gte=0"`
}

// CacheConfig controls the bearer credential cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// ScrapingConfig tunes the scraping pipeline.
type ScrapingConfig struct {
	FailOnEmpty bool `mapstructure:"fail_on_empty"`
}
