package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Logger    LoggerConfig
	Store     StoreConfig
	Members   MembersConfig
	Recipes   RecipesConfig
	Cache     CacheConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Engine    EngineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"household-inventory-api"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKeys   []string `envconfig:"ADMIN_API_KEYS" default:""`
	SeedCatalog bool     `envconfig:"SEED_CATALOG" default:"true"`
}

// LoggerConfig holds zap settings.
type LoggerConfig struct {
	Level             string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding          string `envconfig:"LOG_ENCODING" default:""` // json or console; empty follows APP_ENV
	DisableCaller     bool   `envconfig:"LOG_DISABLE_CALLER" default:"false"`
	DisableStacktrace bool   `envconfig:"LOG_DISABLE_STACKTRACE" default:"false"`
}

// StoreConfig selects the primary inventory store.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // memory, sqlite, postgres or mysql
	Path string `envconfig:"STORE_SQLITE_PATH" default:"./data/inventory.db"`

	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"household"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"STORE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STORE_CONN_MAX_LIFETIME" default:"5m"`
}

// MembersConfig points at an optional MySQL household account directory.
type MembersConfig struct {
	Enabled  bool   `envconfig:"MEMBERS_MYSQL_ENABLED" default:"false"`
	Host     string `envconfig:"MEMBERS_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"MEMBERS_DB_PORT" default:"3306"`
	Name     string `envconfig:"MEMBERS_DB_NAME" default:"household"`
	User     string `envconfig:"MEMBERS_DB_USER" default:"root"`
	Password string `envconfig:"MEMBERS_DB_PASS" default:""`
	Table    string `envconfig:"MEMBERS_TABLE" default:"members"`
}

// RecipesConfig selects where the recipe catalog and cook history live.
type RecipesConfig struct {
	Backend       string `envconfig:"RECIPES_BACKEND" default:"store"` // store or mongodb
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"household"`
}

// CacheConfig holds food catalog cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory, redis or none
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_KEY_PREFIX" default:"household:inventory:cache"`
}

// KafkaConfig holds procurement listener settings.
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_PROCUREMENT_TOPIC" default:"procurement.events"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"household-inventory"`
}

// SchedulerConfig holds background sweep intervals. Zero disables a sweep.
type SchedulerConfig struct {
	Enabled              bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	ExpiryInterval       time.Duration `envconfig:"SCHEDULER_EXPIRY_INTERVAL" default:"1h"`
	NotificationInterval time.Duration `envconfig:"SCHEDULER_NOTIFICATION_INTERVAL" default:"6h"`
	RetentionInterval    time.Duration `envconfig:"SCHEDULER_RETENTION_INTERVAL" default:"24h"`
	JobTimeout           time.Duration `envconfig:"SCHEDULER_JOB_TIMEOUT" default:"5m"`
	InitialDelay         time.Duration `envconfig:"SCHEDULER_INITIAL_DELAY" default:"1m"`
}

// EngineConfig tunes the inventory engine.
type EngineConfig struct {
	RetentionDays       int  `envconfig:"NOTIFICATION_RETENTION_DAYS" default:"30"`
	WasteWindowDays     int  `envconfig:"WASTE_REPORT_WINDOW_DAYS" default:"30"`
	TrendDays           int  `envconfig:"TREND_DEFAULT_DAYS" default:"30"`
	SweepPageSize       int  `envconfig:"SWEEP_PAGE_SIZE" default:"200"`
	DeleteDepleted      bool `envconfig:"DELETE_DEPLETED_ITEMS" default:"false"`
	ExpiringSummaryDays int  `envconfig:"EXPIRING_SUMMARY_DAYS" default:"3"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// DSN returns the driver DSN for the configured store type.
func (s *StoreConfig) DSN() string {
	switch s.Type {
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			url.QueryEscape(s.User), url.QueryEscape(s.Password), s.Host, s.Port, s.Name, s.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			s.User, s.Password, s.Host, s.Port, s.Name)
	default:
		return s.Path
	}
}

// DSN returns the MySQL data source name of the member directory.
func (m *MembersConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		m.User, m.Password, m.Host, m.Port, m.Name)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type)
	}
	switch c.Recipes.Backend {
	case "store", "mongodb":
	default:
		return fmt.Errorf("unsupported RECIPES_BACKEND %q", c.Recipes.Backend)
	}
	switch c.Cache.Type {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Engine.RetentionDays < 1 {
		return fmt.Errorf("NOTIFICATION_RETENTION_DAYS must be at least 1")
	}
	if c.Engine.TrendDays < 1 || c.Engine.TrendDays > 365 {
		return fmt.Errorf("TREND_DEFAULT_DAYS must be between 1 and 365")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
