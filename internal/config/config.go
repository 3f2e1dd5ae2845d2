package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the cartd binary needs, sourced from
// environment variables with local-development defaults.
type Config struct {
	Mode     string
	HTTPAddr string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	PostgresHost      string
	PostgresPort      int
	PostgresUser      string
	PostgresPassword  string
	PostgresDBName    string
	MigrationsDirPath string

	KafkaBrokers []string
	OutboxTopic  string

	ReservationTTL time.Duration
	SweepInterval  time.Duration
	PollInterval   time.Duration

	// Client-side knobs for cartcli: where the local snapshot lives,
	// which cartd to talk to and under which session identity.
	SnapshotDBPath  string
	ServerURL       string
	ClientSessionID string

	StockSourceURL string

	// PlatformURL hosts the checkout session API; StoreURL is the base
	// for the degraded query-string handoff.
	PlatformURL string
	StoreURL    string
}

func Load() *Config {
	return &Config{
		Mode:     getEnv("MODE", "dev"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDBName:    getEnv("POSTGRES_DB", "checkoutdb"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations"),

		KafkaBrokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		OutboxTopic:  getEnv("OUTBOX_TOPIC", "checkout-outbox"),

		ReservationTTL: getEnvDuration("RESERVATION_TTL", 5*time.Minute),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		PollInterval:   getEnvDuration("STOCK_POLL_INTERVAL", 15*time.Second),

		SnapshotDBPath:  getEnv("SNAPSHOT_DB_PATH", "cart_snapshot.db"),
		ServerURL:       getEnv("SERVER_URL", "http://localhost:8080"),
		ClientSessionID: getEnv("CLIENT_SESSION_ID", "local"),

		StockSourceURL: getEnv("STOCK_SOURCE_URL", "http://localhost:9090"),

		PlatformURL: getEnv("PLATFORM_URL", "http://localhost:9091"),
		StoreURL:    getEnv("STORE_URL", "http://localhost:9091/cart"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
