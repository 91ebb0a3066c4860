// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config agrupa as configurações do serviço
type Config struct {
	Port        string
	ServiceName string

	StoreDriver      string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseMaxConns int32
	SQLitePath       string
	MigrateOnStart   bool

	UseDBRoutines bool
	StockPolicy   orders.StockPolicy
	StoreTimeout  time.Duration

	RedisAddr string

	OTLPEndpoint string
	OTelEnabled  bool
}

// Load lê as variáveis de ambiente aplicando os valores padrão
func Load() (Config, error) {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		ServiceName:      getEnv("SERVICE_NAME", "orders-service"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "root"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "pass"),
		DatabaseName:     getEnv("DATABASE_NAME", "orders_db"),
		SQLitePath:       getEnv("SQLITE_PATH", "orders.db"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverSQLite {
		return Config{}, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver)
	}

	maxConns, err := strconv.ParseInt(getEnv("DATABASE_MAX_CONNS", "10"), 10, 32)
	if err != nil || maxConns <= 0 {
		return Config{}, fmt.Errorf("config: DATABASE_MAX_CONNS must be a positive integer")
	}
	cfg.DatabaseMaxConns = int32(maxConns)

	if cfg.UseDBRoutines, err = getBool("USE_DB_ROUTINES", true); err != nil {
		return Config{}, err
	}
	if cfg.MigrateOnStart, err = getBool("MIGRATE_ON_START", false); err != nil {
		return Config{}, err
	}
	if cfg.OTelEnabled, err = getBool("OTEL_ENABLED", true); err != nil {
		return Config{}, err
	}

	if cfg.StockPolicy, err = orders.ParseStockPolicy(getEnv("STOCK_POLICY", string(orders.StockPolicyEnforce))); err != nil {
		return Config{}, fmt.Errorf("config: STOCK_POLICY: %w", err)
	}

	if cfg.StoreTimeout, err = time.ParseDuration(getEnv("STORE_TIMEOUT", "5s")); err != nil || cfg.StoreTimeout <= 0 {
		return Config{}, fmt.Errorf("config: STORE_TIMEOUT must be a positive duration")
	}

	return cfg, nil
}

// PostgresDSN monta a URL de conexão no formato aceito por pgx e lib/pq
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, strconv.FormatBool(defaultValue))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, raw)
	}
	return v, nil
}
