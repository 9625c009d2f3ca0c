package config

import (
	"errors"
	"flag"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"os"
	"strconv"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local dev prod"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Backend  BackendConfig  `yaml:"backend"`
	Session  SessionConfig  `yaml:"session"`
	Attempts AttemptsConfig `yaml:"attempts"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Vault    VaultConfig    `yaml:"vault"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	// PublicURL is the externally visible origin of the frontend, used for the OAuth redirect uri
	PublicURL string `yaml:"public_url" env:"NEXTAUTH_URL" env-default:"http://localhost:3000" validate:"url"`
}

type GRPCConfig struct {
	Port    int           `yaml:"port" env:"GRPC_PORT" env-default:"44044"`
	Timeout time.Duration `yaml:"timeout" env:"GRPC_TIMEOUT" env-default:"5s"`
}

// BackendConfig describes the SW360 backend acting as OAuth authorization server
type BackendConfig struct {
	APIURL           string        `yaml:"api_url" env:"SW360_API_URL" env-required:"true" validate:"url"`
	ClientID         string        `yaml:"client_id" env:"SW360_REST_CLIENT_ID" env-required:"true"`
	ClientSecret     string        `yaml:"client_secret" env:"SW360_REST_CLIENT_SECRET"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"SW360_REQUEST_TIMEOUT" env-default:"30s"`
	MetadataCacheTTL time.Duration `yaml:"metadata_cache_ttl" env:"SW360_METADATA_CACHE_TTL" env-default:"30m"`
}

type SessionConfig struct {
	Secret         string        `yaml:"secret" env:"SW360_SESSION_SECRET"`
	CookieName     string        `yaml:"cookie_name" env:"SW360_SESSION_COOKIE" env-default:"sw360.session-token"`
	CSRFCookieName string        `yaml:"csrf_cookie_name" env:"SW360_CSRF_COOKIE" env-default:"sw360.csrf-token"`
	MaxAge         time.Duration `yaml:"max_age" env:"SW360_SESSION_MAX_AGE" env-default:"720h"`
}

// AttemptsConfig configures where in-flight PKCE attempts are kept
type AttemptsConfig struct {
	Driver     string        `yaml:"driver" env:"ATTEMPTS_DRIVER" env-default:"memory" validate:"oneof=memory redis postgres"`
	TTL        time.Duration `yaml:"ttl" env:"ATTEMPTS_TTL" env-default:"10m"`
	CookieName string        `yaml:"cookie_name" env:"ATTEMPTS_COOKIE" env-default:"sw360.state"`
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Addr returns host:port of the redis server
func (c RedisConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

type PostgresConfig struct {
	StoragePath string `yaml:"conn_string" env:"POSTGRES_CONN_STRING"`
}

// VaultConfig enables reading client and session secrets from Hashicorp Vault KV v2
type VaultConfig struct {
	Enabled      bool   `yaml:"enabled" env:"VAULT_ENABLED"`
	Address      string `yaml:"address" env:"VAULT_ADDR" env-default:"http://vault:8200"`
	Token        string `yaml:"token" env:"VAULT_TOKEN"`
	RoleIDPath   string `yaml:"role_id_path" env:"VAULT_ROLE_ID_PATH" env-default:"./secrets/role_id.txt"`
	SecretIDPath string `yaml:"secret_id_path" env:"VAULT_SECRET_ID_PATH" env-default:"./secrets/secret_id.txt"`
	MountPath    string `yaml:"mount_path" env:"VAULT_MOUNT_PATH" env-default:"secret"`
	SecretPath   string `yaml:"secret_path" env:"VAULT_SECRET_PATH" env-default:"sw360auth"`
}

// MustLoad loads config from the path given by flag or env, env only when no path is given
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic(err)
	}
	return cfg
}

// MustLoadPath loads config from path and panics on failure
func MustLoadPath(path string) *Config {
	if path == "" {
		panic("config path is empty")
	}
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads an optional .env file, then the yaml file at path (if any) with env overrides
func Load(path string) (*Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config path does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field formats and cross-field requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// secrets may come from vault later
	if !c.Vault.Enabled && c.Session.Secret == "" {
		return errors.New("invalid config: session secret is required")
	}
	if !c.Vault.Enabled && c.Backend.ClientSecret == "" {
		return errors.New("invalid config: client secret is required")
	}
	if c.Attempts.Driver == DriverPostgres && c.Postgres.StoragePath == "" {
		return errors.New("invalid config: postgres conn_string is required for postgres attempts driver")
	}
	return nil
}

// Priority: flag > env > default
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
