package warehouse

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config carries everything the service needs to boot. Values come from a
// YAML file with env vars overlaid on top; env alone is enough in
// production.
type Config struct {
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN" env-default:"file:warehouse.db?cache=shared&_fk=1"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password     string `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MailQueueKey string `yaml:"mail_queue_key" env:"MAIL_QUEUE_KEY" env-default:"warehouse:mail"`
}

type AuthConfig struct {
	SigningKey        string        `yaml:"signing_key" env:"AUTH_SIGNING_KEY" env-required:"true"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"48h"`
	BcryptCost        int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
	ActionTokenSalt   string        `yaml:"action_token_salt" env:"ACTION_TOKEN_SALT" env-default:"email-configuration"`
	ActionTokenMaxAge time.Duration `yaml:"action_token_max_age" env:"ACTION_TOKEN_MAX_AGE" env-default:"24h"`
	UseHashIDs        bool          `yaml:"use_hash_ids" env:"AUTH_USE_HASH_IDS" env-default:"false"`
}

// GetSigningKey returns the shared token signing secret
func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

// GetAccessTokenTTL returns the access token lifetime
func (c *Config) GetAccessTokenTTL() time.Duration {
	return c.Auth.AccessTokenTTL
}

// GetRefreshTokenTTL returns the refresh token lifetime
func (c *Config) GetRefreshTokenTTL() time.Duration {
	return c.Auth.RefreshTokenTTL
}

// MustLoad wraps Load and panics on error
func MustLoad(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig resolves configuration in priority order: explicit path,
// CONFIG_PATH, ./config.yaml, then env vars alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return tryRead("config.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide a path, CONFIG_PATH, config.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
