// Package config loads service configuration from file and environment.
// Precedence, lowest to highest: built-in defaults, YAML file, environment
// variables. The merged result is validated once; policy errors (a missing
// tier quota, a zero window) are fatal at startup so they can never surface
// at request time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"edgegate/internal/models"
)

// Load loads configuration from the optional YAML file at configPath and
// EDGEGATE_* environment variables. A .env file in the working directory is
// read first, if present.
func Load(configPath string) (*models.Config, error) {
	// Best-effort: absence of a .env file is the normal case.
	_ = godotenv.Load()

	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile overlays configuration from a YAML file.
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment overlays configuration from environment variables.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("EDGEGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("EDGEGATE_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("EDGEGATE_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("EDGEGATE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if tls := os.Getenv("EDGEGATE_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("EDGEGATE_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("EDGEGATE_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Upstream configuration
	if url := os.Getenv("EDGEGATE_UPSTREAM_URL"); url != "" {
		config.Upstream.URL = url
	}

	if timeout := os.Getenv("EDGEGATE_UPSTREAM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Upstream.Timeout = d
		}
	}

	// Store configuration
	if storeType := os.Getenv("EDGEGATE_STORE_TYPE"); storeType != "" {
		config.Store.Type = storeType
	}

	if timeout := os.Getenv("EDGEGATE_STORE_OP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Store.OpTimeout = d
		}
	}

	if addr := os.Getenv("EDGEGATE_REDIS_ADDR"); addr != "" {
		config.Store.Redis.Addr = addr
	}

	if password := os.Getenv("EDGEGATE_REDIS_PASSWORD"); password != "" {
		config.Store.Redis.Password = password
	}

	if db := os.Getenv("EDGEGATE_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.Store.Redis.DB = dbNum
		}
	}

	if poolSize := os.Getenv("EDGEGATE_REDIS_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Store.Redis.PoolSize = size
		}
	}

	if dsn := os.Getenv("EDGEGATE_POSTGRES_DSN"); dsn != "" {
		config.Store.Postgres.DSN = dsn
	}

	if path := os.Getenv("EDGEGATE_SQLITE_PATH"); path != "" {
		config.Store.SQLite.Path = path
	}

	// Rate limiting configuration. The tier table itself is file-only;
	// only the switches and burst knobs are overridable per environment.
	if enabled := os.Getenv("EDGEGATE_RATELIMIT_ENABLED"); enabled != "" {
		config.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	if burst := os.Getenv("EDGEGATE_BURST_ENABLED"); burst != "" {
		config.RateLimit.Burst.Enabled = strings.ToLower(burst) == "true"
	}

	if limit := os.Getenv("EDGEGATE_BURST_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			config.RateLimit.Burst.Limit = n
		}
	}

	if exempt := os.Getenv("EDGEGATE_EXEMPT"); exempt != "" {
		for _, entry := range strings.Split(exempt, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				config.RateLimit.Exempt = append(config.RateLimit.Exempt, entry)
			}
		}
	}

	// Session and cache TTLs
	if ttl := os.Getenv("EDGEGATE_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Session.TTL = d
		}
	}

	if ttl := os.Getenv("EDGEGATE_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Cache.DefaultTTL = d
		}
	}

	// Logging configuration
	if level := os.Getenv("EDGEGATE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("EDGEGATE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("EDGEGATE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("EDGEGATE_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("EDGEGATE_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("EDGEGATE_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("EDGEGATE_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Tracing configuration
	if tracing := os.Getenv("EDGEGATE_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("EDGEGATE_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("EDGEGATE_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}
