package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey stores the logger in the command context.
type loggerKey struct{}

// cfgKey stores the loaded config in the command context.
type cfgKey struct{}

var (
	k              = koanf.New(".")
	configFileUsed string
)

// findConfigFile finds the config file to use.
// Priority: explicit path > querypulse.yaml > querypulse.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("querypulse.yaml"); err == nil {
		return "querypulse.yaml"
	}
	if _, err := os.Stat("querypulse.yml"); err == nil {
		return "querypulse.yml"
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"store_type":    DefaultStoreType,
		"store_path":    DefaultStorePath,
		"store_host":    DefaultStoreHost,
		"store_port":    DefaultStorePort,
		"store_sslmode": DefaultSSLMode,
		"http_port":     DefaultHTTPPort,
		"window_days":   DefaultWindowDays,
		"workers":       DefaultWorkers,
		"log_level":     DefaultLogLevel,
		"verbose":       false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (QUERYPULSE_ prefix)
	// Transform: QUERYPULSE_STORE_TYPE -> store_type
	if err := k.Load(env.Provider("QUERYPULSE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "QUERYPULSE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Expand ${VAR} in connection fields so config files can reference
	// secrets from the environment.
	cfg.StoreHost = expandEnvVars(cfg.StoreHost)
	cfg.StoreDatabase = expandEnvVars(cfg.StoreDatabase)
	cfg.StoreUser = expandEnvVars(cfg.StoreUser)
	cfg.StorePassword = expandEnvVars(cfg.StorePassword)

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This lets the commands package retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// ConfigKey returns the context key used for storing the config.
func ConfigKey() interface{} {
	return cfgKey{}
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(cfgKey{}).(*Config); ok {
		return c
	}
	// Default config as safe fallback
	return &Config{
		StoreType:  DefaultStoreType,
		StorePath:  DefaultStorePath,
		StoreHost:  DefaultStoreHost,
		StorePort:  DefaultStorePort,
		HTTPPort:   DefaultHTTPPort,
		WindowDays: DefaultWindowDays,
		Workers:    DefaultWorkers,
		LogLevel:   DefaultLogLevel,
	}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
