package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/minndara/site-admin/pkg/messaging/redis"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	Mode           string        `mapstructure:"mode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// UserConfig is an operator account of the bundled identity provider.
type UserConfig struct {
	UID          string `mapstructure:"uid"`
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenExpiry   time.Duration `mapstructure:"token_expiry"`
	AllowedEmails []string      `mapstructure:"allowed_emails"`
	Users         []UserConfig  `mapstructure:"users"`
}

type CatalogConfig struct {
	DefaultCategory string `mapstructure:"default_category"`
	MigrateOrphans  bool   `mapstructure:"migrate_orphans"`
	MoveRetries     int    `mapstructure:"move_retries"`
}

type PublicConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	ExportDir  string        `mapstructure:"export_dir"`
	Categories []string      `mapstructure:"categories"`
}

type WorkerConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	Namespace         string `mapstructure:"namespace"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Public     PublicConfig     `mapstructure:"public"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// envOverrides are read from SITE_* variables and win over the config file.
type envOverrides struct {
	Port          int           `envconfig:"PORT"`
	DBDriver      string        `envconfig:"DB_DRIVER"`
	DBHost        string        `envconfig:"DB_HOST"`
	DBPort        int           `envconfig:"DB_PORT"`
	DBUser        string        `envconfig:"DB_USER"`
	DBPassword    string        `envconfig:"DB_PASSWORD"`
	DBName        string        `envconfig:"DB_NAME"`
	RedisURL      string        `envconfig:"REDIS_URL"`
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenExpiry   time.Duration `envconfig:"TOKEN_EXPIRY"`
	AllowedEmails []string      `envconfig:"ALLOWED_EMAILS"`
	LogLevel      string        `envconfig:"LOG_LEVEL"`
	ExportDir     string        `envconfig:"EXPORT_DIR"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.token_expiry", 12*time.Hour)

	v.SetDefault("catalog.default_category", "roja")
	v.SetDefault("catalog.migrate_orphans", true)
	v.SetDefault("catalog.move_retries", 3)

	v.SetDefault("public.cache_ttl", time.Minute)
	v.SetDefault("public.export_dir", "./public")
	v.SetDefault("public.categories", []string{"roja", "blanca", "negra", "verde"})

	v.SetDefault("worker.schedule", "@every 1h")

	v.SetDefault("log.level", "info")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("security.max_body_bytes", 1<<20)

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.namespace", "site_admin")
}

// LoadConfig reads config.yaml from the usual locations, then applies .env
// and SITE_* environment overrides. A missing config file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("site", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.DBDriver != "" {
		cfg.Database.Driver = env.DBDriver
	}
	if env.DBHost != "" {
		cfg.Database.Host = env.DBHost
	}
	if env.DBPort != 0 {
		cfg.Database.Port = env.DBPort
	}
	if env.DBUser != "" {
		cfg.Database.User = env.DBUser
	}
	if env.DBPassword != "" {
		cfg.Database.Password = env.DBPassword
	}
	if env.DBName != "" {
		cfg.Database.Name = env.DBName
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.JWTSecret != "" {
		cfg.Auth.JWTSecret = env.JWTSecret
	}
	if env.TokenExpiry != 0 {
		cfg.Auth.TokenExpiry = env.TokenExpiry
	}
	if len(env.AllowedEmails) > 0 {
		cfg.Auth.AllowedEmails = env.AllowedEmails
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.ExportDir != "" {
		cfg.Public.ExportDir = env.ExportDir
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Catalog.DefaultCategory) == "" {
		return errors.New("catalog.default_category must not be empty")
	}
	if c.Catalog.MoveRetries < 0 {
		return errors.New("catalog.move_retries must not be negative")
	}
	return nil
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
