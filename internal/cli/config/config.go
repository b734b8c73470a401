// Package config loads CLI configuration from defaults, a YAML file,
// QUERYPULSE_-prefixed environment variables, and flags, in ascending
// precedence.
package config

// Default configuration values.
const (
	DefaultStoreType  = "sqlite"
	DefaultStorePath  = "querypulse.db"
	DefaultStoreHost  = "localhost"
	DefaultStorePort  = 5432
	DefaultSSLMode    = "disable"
	DefaultHTTPPort   = 8080
	DefaultWindowDays = 30
	DefaultWorkers    = 4
	DefaultLogLevel   = "info"
)

// Config is the resolved CLI configuration.
type Config struct {
	// StoreType selects the event store backend: sqlite or postgres.
	StoreType string `koanf:"store_type"`

	// StorePath is the SQLite database path (":memory:" for in-memory).
	StorePath string `koanf:"store_path"`

	// Postgres connection settings, used when StoreType is postgres.
	StoreHost     string `koanf:"store_host"`
	StorePort     int    `koanf:"store_port"`
	StoreDatabase string `koanf:"store_database"`
	StoreUser     string `koanf:"store_user"`
	StorePassword string `koanf:"store_password"`
	StoreSSLMode  string `koanf:"store_sslmode"`

	// HTTPPort is the API server listen port.
	HTTPPort int `koanf:"http_port"`

	// WindowDays is the default usage lookback window. 0 = full history.
	WindowDays int `koanf:"window_days"`

	// Workers is the aggregator's parallel shard count.
	Workers int `koanf:"workers"`

	LogLevel string `koanf:"log_level"`
	Verbose  bool   `koanf:"verbose"`
}
