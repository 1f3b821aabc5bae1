// Package config loads the server configuration from an optional .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Session store backends selectable through SESSION_STORE.
const (
	SessionStoreMongo  = "mongo"
	SessionStoreMemory = "memory"
)

// DefaultEnvFile is read before the environment is processed. Variables
// already present in the environment win over the file.
const DefaultEnvFile = ".env"

type Config struct {
	MongoURL            string        `envconfig:"MONGODB_URL" required:"true"`
	MongoName           string        `envconfig:"MONGODB_NAME" required:"true"`
	MongoConnectTimeout time.Duration `envconfig:"MONGODB_CONNECT_TIMEOUT" default:"10s"`

	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"336h"`
	SessionStore  string        `envconfig:"SESSION_STORE" default:"mongo"`

	Port              string        `envconfig:"PORT" default:"1337"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	StaticDir   string `envconfig:"STATIC_DIR" default:"dist/public"`
	FaviconPath string `envconfig:"FAVICON_PATH" default:"dist/public/favicons/favicon.ico"`

	Env      string `envconfig:"ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the given env files (DefaultEnvFile when none are given) and
// then the process environment. Missing env files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects required values that are present but empty.
func (c *Config) Validate() error {
	switch {
	case c.MongoURL == "":
		return errors.New("MONGODB_URL must not be empty")
	case c.MongoName == "":
		return errors.New("MONGODB_NAME must not be empty")
	case c.SessionSecret == "":
		return errors.New("SESSION_SECRET must not be empty")
	case c.Port == "":
		return errors.New("PORT must not be empty")
	case c.SessionStore != SessionStoreMongo && c.SessionStore != SessionStoreMemory:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMongo, SessionStoreMemory, c.SessionStore)
	}
	return nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}
