// Package config loads the service configuration from YAML with GBUSINESS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leelynne/gbusiness-httpsig/session"
)

type Config struct {
	Log struct {
		Env   string `yaml:"env"`   // dev | prod
		Level string `yaml:"level"` // debug | info | warn | error
		// Redact hides Authorization and Digest values in request logs.
		Redact  bool `yaml:"redact"`
		MaxBody int  `yaml:"max_body"`
	} `yaml:"log"`

	HTTP struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`

	Server struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Proxy struct {
		Addr    string `yaml:"addr"`
		Verbose bool   `yaml:"verbose"`
	} `yaml:"proxy"`

	Store struct {
		Backend    string `yaml:"backend"` // file | redis | memory
		Path       string `yaml:"path"`
		Passphrase string `yaml:"passphrase"`
		Redis      struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Provider struct {
		// Environment is the default for activation when none is given.
		Environment string `yaml:"environment"`
		// Endpoints overrides the API root per environment, e.g. to target a local fake.
		Endpoints map[string]string `yaml:"endpoints"`
	} `yaml:"provider"`
}

// LoadEnvFile loads a dotenv file into the process environment. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads path (optional, a missing file yields defaults), applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Timeout == "" {
		c.HTTP.Timeout = "30s"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Proxy.Addr == "" {
		c.Proxy.Addr = ":8081"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Backend == "file" && c.Store.Path == "" {
		c.Store.Path = defaultStorePath()
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Provider.Environment == "" {
		c.Provider.Environment = string(session.Sandbox)
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "gbusiness", "credential")
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("GBUSINESS_LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("GBUSINESS_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvBool("GBUSINESS_LOG_REDACT"); ok {
		c.Log.Redact = v
	}
	if v, ok := getEnvInt("GBUSINESS_LOG_MAX_BODY"); ok {
		c.Log.MaxBody = v
	}
	if v, ok := getEnvStr("GBUSINESS_HTTP_TIMEOUT"); ok {
		c.HTTP.Timeout = v
	}
	if v, ok := getEnvStr("GBUSINESS_SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("GBUSINESS_PROXY_ADDR"); ok {
		c.Proxy.Addr = v
	}
	if v, ok := getEnvStr("GBUSINESS_STORE_BACKEND"); ok {
		c.Store.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("GBUSINESS_STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := getEnvStr("GBUSINESS_STORE_PASSPHRASE"); ok {
		c.Store.Passphrase = v
	}
	if v, ok := getEnvStr("GBUSINESS_REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvInt("GBUSINESS_REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("GBUSINESS_ENVIRONMENT"); ok {
		c.Provider.Environment = v
	}
	for _, env := range []session.Environment{session.Sandbox, session.Production} {
		if v, ok := getEnvStr("GBUSINESS_ENDPOINT_" + strings.ToUpper(string(env))); ok {
			if c.Provider.Endpoints == nil {
				c.Provider.Endpoints = map[string]string{}
			}
			c.Provider.Endpoints[string(env)] = v
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("http.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	if _, err := session.ParseEnvironment(c.Provider.Environment); err != nil {
		return fmt.Errorf("provider.environment: %w", err)
	}
	for name := range c.Provider.Endpoints {
		if !session.Environment(name).Valid() {
			return fmt.Errorf("provider.endpoints: unknown environment %q", name)
		}
	}
	switch c.Store.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	return nil
}

// Timeout returns http.timeout as a duration.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTP.Timeout)
	return d
}

func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// Endpoints converts provider.endpoints to typed keys.
func (c *Config) Endpoints() map[session.Environment]string {
	out := make(map[session.Environment]string, len(c.Provider.Endpoints))
	for k, v := range c.Provider.Endpoints {
		out[session.Environment(k)] = v
	}
	return out
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
