// Package config loads the service configuration: built-in defaults, then an
// optional YAML file, then environment variables (a .env file is honoured).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

var defaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Users     UsersConfig     `koanf:"users"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	Mode            string        `koanf:"mode"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type StoreConfig struct {
	// Driver is mongo or memory.
	Driver string `koanf:"driver"`
}

type MongoConfig struct {
	URI              string        `koanf:"uri"`
	Database         string        `koanf:"database"`
	ConnectRetries   int           `koanf:"connect_retries"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
}

// UsersConfig points at the external Users identity service.
type UsersConfig struct {
	URL        string        `koanf:"url"`
	Retries    int           `koanf:"retries"`
	Timeout    time.Duration `koanf:"timeout"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

type AuthConfig struct {
	JWTSecret   string `koanf:"jwt_secret"`
	TokenHeader string `koanf:"token_header"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
	Disabled          bool    `koanf:"disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "debug",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    40 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{Driver: DriverMongo},
		Mongo: MongoConfig{
			URI:              "mongodb://127.0.0.1:27017",
			Database:         "social_service",
			ConnectRetries:   3,
			ConnectTimeout:   15 * time.Second,
			OperationTimeout: 10 * time.Second,
		},
		// 3 attempts of 10s each fit inside the 40s write timeout.
		Users: UsersConfig{
			Retries:    3,
			Timeout:    10 * time.Second,
			RetryDelay: 200 * time.Millisecond,
		},
		Auth: AuthConfig{TokenHeader: "x-access-token"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if origins, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(origins)); err != nil {
			return nil, fmt.Errorf("failed to parse cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Users.URL == "" {
		errs = append(errs, errors.New("users.url (USERS_SERVICE_URL) is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	}
	switch c.Store.Driver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri (MONGO_URL) is required for the mongo store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be mongo or memory, got %q", c.Store.Driver))
	}
	if c.Users.Retries < 1 {
		errs = append(errs, fmt.Errorf("users.retries must be at least 1, got %d", c.Users.Retries))
	}
	if c.Users.Timeout <= 0 {
		errs = append(errs, errors.New("users.timeout must be positive"))
	}
	if budget := c.Users.RetryBudget(); c.Server.WriteTimeout < budget {
		errs = append(errs, fmt.Errorf("server.write_timeout %s is shorter than the users retry budget %s", c.Server.WriteTimeout, budget))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rate_limit needs a positive rate and burst unless disabled"))
	}

	return errors.Join(errs...)
}

// RetryBudget is the longest a Users service call can take with every
// attempt timing out.
func (u *UsersConfig) RetryBudget() time.Duration {
	return time.Duration(u.Retries) * (u.Timeout + u.RetryDelay)
}

// Addr is the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envTransformFunc maps the environment variables the service has always
// used onto koanf paths. Unknown variables are dropped.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"port":             "server.port",
		"gin_mode":         "server.mode",
		"read_timeout":     "server.read_timeout",
		"write_timeout":    "server.write_timeout",
		"shutdown_timeout": "server.shutdown_timeout",
		"cors_origins":     "server.cors_origins",

		"store_driver": "store.driver",

		"mongo_url":               "mongo.uri",
		"mongodb_uri":             "mongo.uri",
		"mongo_database":          "mongo.database",
		"mongo_connect_retries":   "mongo.connect_retries",
		"mongo_operation_timeout": "mongo.operation_timeout",

		"users_service_url": "users.url",
		"users_retries":     "users.retries",
		"users_timeout":     "users.timeout",
		"users_retry_delay": "users.retry_delay",

		"jwt_secret":   "auth.jwt_secret",
		"token_header": "auth.token_header",

		"rate_limit_rps":     "rate_limit.requests_per_second",
		"rate_limit_burst":   "rate_limit.burst",
		"disable_rate_limit": "rate_limit.disabled",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}
	return mappings[strings.ToLower(key)]
}
