package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	ServerPort  string
	GRPCPort    string // empty disables the gRPC dashboard
	Environment string

	StoreDriver string
	DatabaseURL string

	RedisURL           string
	RedisSentinelAddrs []string
	RedisMasterName    string

	KafkaBrokers      string
	KafkaUsername     string
	KafkaPassword     string
	KafkaCACert       string
	KafkaEventsTopic  string
	KafkaRestockTopic string
	KafkaGroupID      string

	ShopName      string
	Timezone      string
	ImportCharset string

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// Load reads the configuration from the environment.
func Load() *Config {
	// PG* parts are accepted when no full URL is set (Railway style).
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = getEnv("POSTGRES_URL", "")
	}
	if databaseURL == "" {
		pgHost := getEnv("PGHOST", "")
		pgPort := getEnv("PGPORT", "5432")
		pgUser := getEnv("PGUSER", "postgres")
		pgPassword := getEnv("PGPASSWORD", "")
		pgDatabase := getEnv("PGDATABASE", "partsledger")

		if pgHost != "" {
			if pgPassword != "" {
				databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					pgUser, pgPassword, pgHost, pgPort, pgDatabase)
			} else {
				databaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
					pgUser, pgHost, pgPort, pgDatabase)
			}
		}
	}

	storeDriver := strings.ToLower(getEnv("STORE_DRIVER", ""))
	if storeDriver == "" {
		storeDriver = StoreMemory
		if databaseURL != "" {
			storeDriver = StorePostgres
		}
	}

	redisURL := getEnv("REDIS_URL", "")
	if redisURL == "" {
		redisHost := getEnv("REDISHOST", "")
		redisPort := getEnv("REDISPORT", "6379")
		redisPassword := getEnv("REDISPASSWORD", "")
		redisDB := getEnv("REDISDB", "0")

		if redisHost != "" {
			if redisPassword != "" {
				redisURL = fmt.Sprintf("redis://:%s@%s:%s/%s", redisPassword, redisHost, redisPort, redisDB)
			} else {
				redisURL = fmt.Sprintf("redis://%s:%s/%s", redisHost, redisPort, redisDB)
			}
		}
	}

	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", ""),
		Environment:        getEnv("ENV", "development"),
		StoreDriver:        storeDriver,
		DatabaseURL:        databaseURL,
		RedisURL:           redisURL,
		RedisSentinelAddrs: splitList(getEnv("REDIS_SENTINEL_ADDRS", "")),
		RedisMasterName:    getEnv("REDIS_MASTER_NAME", "mymaster"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaUsername:      getEnv("KAFKA_USERNAME", ""),
		KafkaPassword:      getEnv("KAFKA_PASSWORD", ""),
		KafkaCACert:        getEnv("KAFKA_CA_CERT", ""),
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "partsledger.events"),
		KafkaRestockTopic:  getEnv("KAFKA_RESTOCK_TOPIC", ""),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "partsledger-restock"),
		ShopName:           getEnv("SHOP_NAME", "SPARE PARTS STORE"),
		Timezone:           getEnv("TIMEZONE", "Local"),
		ImportCharset:      getEnv("IMPORT_CHARSET", "windows-1252"),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want memory or postgres)", c.StoreDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.KafkaRestockTopic != "" && c.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_RESTOCK_TOPIC requires KAFKA_BROKERS")
	}
	return nil
}

// Location resolves Timezone, the zone that defines "today" on the dashboard.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
