// Package config loads daemon and client settings from PAGEWATCH_*
// environment variables, after an optional .env file in the config
// directory.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "PAGEWATCH_"

// ConfigDirEnv overrides the configuration directory.
const ConfigDirEnv = Prefix + "CONFIG_DIR"

const secretFileName = "rpc.secret"

// Config is the complete runtime configuration.
type Config struct {
	ConfigDir string `env:"CONFIG_DIR"`

	Store   Store   `envPrefix:"STORE_"`
	RPC     RPC     `envPrefix:"RPC_"`
	Fetch   Fetch   `envPrefix:"FETCH_"`
	Sandbox Sandbox `envPrefix:"SANDBOX_"`
	Wake    Wake    `envPrefix:"WAKE_"`

	LogJSON bool `env:"LOG_JSON" envDefault:"false"`
}

// Store selects the persistence backend.
type Store struct {
	Backend       string `env:"BACKEND" envDefault:"sqlite"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// RPC configures the JSON-RPC listener and its bearer token.
type RPC struct {
	Addr   string `env:"ADDR" envDefault:"127.0.0.1:9471"`
	Secret string `env:"SECRET"`
}

// Fetch holds fetcher defaults.
type Fetch struct {
	Retries int `env:"RETRIES" envDefault:"3"`
	// TimeoutMS applies to requests that carry no timeout.
	TimeoutMS int `env:"TIMEOUT_MS" envDefault:"7000"`
}

// Sandbox bounds handler execution.
type Sandbox struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Wake tunes the suspend detector.
type Wake struct {
	Tick      time.Duration `env:"TICK" envDefault:"30s"`
	Threshold time.Duration `env:"THRESHOLD" envDefault:"60s"`
}

// Load reads the .env file in the config directory (if any) and parses
// the environment. Variables already set win over the .env file.
func Load() (*Config, error) {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		var err error
		if dir, err = DefaultConfigDir(); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.ConfigDir == "" {
		c.ConfigDir = dir
	}
	abs, err := filepath.Abs(c.ConfigDir)
	if err != nil {
		return nil, err
	}
	c.ConfigDir = abs
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "file", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Fetch.Retries < 1 {
		return errors.New("config: fetch retries must be at least 1")
	}
	if c.Fetch.TimeoutMS < 1 {
		return errors.New("config: fetch timeout must be positive")
	}
	if c.Sandbox.Timeout <= 0 {
		return errors.New("config: sandbox timeout must be positive")
	}
	if c.Wake.Tick <= 0 {
		return errors.New("config: wake tick must be positive")
	}
	return nil
}

// DefaultConfigDir returns <user config dir>/pagewatch.
func DefaultConfigDir() (string, error) {
	cdr, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cdr, "pagewatch"), nil
}

// EnsureDir creates the config directory.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.ConfigDir, 0o755)
}

// SecretPath is where the generated RPC secret is kept.
func (c *Config) SecretPath() string {
	return filepath.Join(c.ConfigDir, secretFileName)
}

// ResolveSecret returns the configured RPC secret. Without one it reads
// the secret file, generating it when create is set and it is missing.
func (c *Config) ResolveSecret(create bool) (string, error) {
	if c.RPC.Secret != "" {
		return c.RPC.Secret, nil
	}
	b, err := os.ReadFile(c.SecretPath())
	if err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			c.RPC.Secret = s
			return s, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if !create {
		return "", fmt.Errorf("config: no RPC secret (set %sRPC_SECRET or start the daemon once)", Prefix)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	if err := c.EnsureDir(); err != nil {
		return "", err
	}
	if err := os.WriteFile(c.SecretPath(), []byte(secret+"\n"), 0o600); err != nil {
		return "", err
	}
	c.RPC.Secret = secret
	return secret, nil
}

// Endpoint returns the HTTP URL of the JSON-RPC endpoint.
func (c *Config) Endpoint() string {
	return "http://" + c.RPC.Addr + "/jsonrpc"
}
