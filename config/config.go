// Package config holds the configuration of a survey node. Values come
// from command line flags, then from SURVEY_* environment variables (an
// optional .env file is loaded into the environment first), then from the
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/encrypted-survey/crypto/ecc/curves"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/log"
)

// EnvPrefix prefixes the environment variable of every flag. The variable
// name is the flag name upper cased, with dashes replaced by underscores.
const EnvPrefix = "SURVEY_"

// Config is the node configuration.
type Config struct {
	Host      string
	Port      int
	DataDir   string
	LogLevel  string
	LogOutput string
	Curve     string
	MaxTotal  uint64
	ChainID   uint64
	EnvFile   string
}

// Default returns the default configuration. An empty DataDir keeps the
// node state in memory.
func Default() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      9090,
		LogLevel:  log.LogLevelInfo,
		LogOutput: "stdout",
		Curve:     curves.CurveTypeBabyJubJub,
		MaxTotal:  gateway.DefaultMaxTotal,
		ChainID:   gateway.DefaultDomain.ChainID,
		EnvFile:   ".env",
	}
}

// Load parses args (without the program name) on top of the defaults and
// the environment, and validates the result.
func Load(name string, args []string) (*Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "API listen host")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "API listen port")
	fs.StringVarP(&cfg.DataDir, "datadir", "d", cfg.DataDir, "data directory, empty to keep the state in memory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogOutput, "log-output", cfg.LogOutput, "log output (stdout, stderr or a file path)")
	fs.StringVar(&cfg.Curve, "curve", cfg.Curve, fmt.Sprintf("encryption curve %v", curves.Curves()))
	fs.Uint64Var(&cfg.MaxTotal, "max-total", cfg.MaxTotal, "largest decryptable total")
	fs.Uint64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "chain id of the decryption credentials domain")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "environment file, ignored if missing")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot load %s: %w", cfg.EnvFile, err)
		}
	}
	var envErr error
	fs.VisitAll(func(f *flag.Flag) {
		if f.Changed || envErr != nil {
			return
		}
		key := EnvKey(f.Name)
		if value, ok := os.LookupEnv(key); ok {
			if err := fs.Set(f.Name, value); err != nil {
				envErr = fmt.Errorf("invalid %s: %w", key, err)
			}
		}
	})
	if envErr != nil {
		return nil, envErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvKey returns the environment variable of the flag name.
func EnvKey(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !curves.IsValid(c.Curve) {
		return fmt.Errorf("unsupported curve %q", c.Curve)
	}
	if c.MaxTotal == 0 {
		return fmt.Errorf("max total must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// Gateway returns the gateway configuration.
func (c *Config) Gateway() gateway.Config {
	domain := gateway.DefaultDomain
	domain.ChainID = c.ChainID
	return gateway.Config{
		CurveType: c.Curve,
		MaxTotal:  c.MaxTotal,
		Domain:    domain,
	}
}
