package domain

import (
	"os"
	"strconv"
	"time"
)

// Config holds the complete riskd configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Ledger     LedgerConfig     `json:"ledger"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the default configuration: SQLite, in-memory
// cache, channel bus, ledger disabled.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./riskd.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Ledger: LedgerConfig{
			ChainID:        1337,
			ReceiptTimeout: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "riskd",
		},
	}
}

// ConfigFromEnv builds a configuration from RISKD_* environment
// variables layered over DefaultConfig. Call godotenv.Load before this
// to pick up a .env file.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Server.Host = getEnv("RISKD_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("RISKD_PORT", cfg.Server.Port)

	cfg.Repository.Driver = getEnv("RISKD_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = getEnv("RISKD_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = getEnv("RISKD_PG_HOST", "localhost")
	cfg.Repository.PostgresPort = getEnvInt("RISKD_PG_PORT", 5432)
	cfg.Repository.PostgresUser = getEnv("RISKD_PG_USER", "riskd")
	cfg.Repository.PostgresPassword = getEnv("RISKD_PG_PASSWORD", "")
	cfg.Repository.PostgresDB = getEnv("RISKD_PG_DB", "riskd")
	cfg.Repository.PostgresSSLMode = getEnv("RISKD_PG_SSLMODE", "disable")

	cfg.Cache.Type = getEnv("RISKD_CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = getEnv("RISKD_REDIS_ADDR", "localhost:6379")
	cfg.Cache.RedisPassword = getEnv("RISKD_REDIS_PASSWORD", "")
	cfg.Cache.RedisDB = getEnvInt("RISKD_REDIS_DB", 0)
	cfg.Cache.EnableTwoPhase = cfg.Cache.Type == "redis"

	cfg.EventBus.Type = getEnv("RISKD_BUS_TYPE", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = getEnv("RISKD_NATS_URL", "nats://localhost:4222")
	cfg.EventBus.NATSToken = getEnv("RISKD_NATS_TOKEN", "")
	cfg.EventBus.NATSMaxReconnects = getEnvInt("RISKD_NATS_MAX_RECONNECTS", 10)
	cfg.EventBus.NATSReconnectWait = getEnvInt("RISKD_NATS_RECONNECT_WAIT", 5)

	cfg.Ledger.RPCURL = getEnv("RISKD_LEDGER_RPC_URL", "")
	cfg.Ledger.ContractAddress = getEnv("RISKD_LEDGER_CONTRACT", "")
	cfg.Ledger.PrivateKey = getEnv("RISKD_LEDGER_PRIVATE_KEY", "")
	cfg.Ledger.ChainID = int64(getEnvInt("RISKD_LEDGER_CHAIN_ID", int(cfg.Ledger.ChainID)))
	cfg.Ledger.ReceiptTimeout = getEnvInt("RISKD_LEDGER_RECEIPT_TIMEOUT", cfg.Ledger.ReceiptTimeout)

	cfg.Logging.Level = getEnv("RISKD_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("RISKD_LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("RISKD_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = getEnv("RISKD_TRACING_SERVICE", cfg.Tracing.ServiceName)

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
