package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	StoreDriver string
	SQLiteDSN   string
	RabbitURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HoldTTL                time.Duration
	SweepInterval          time.Duration
	SweepBatch             int
	AllowPartialAdmission  bool
	PartialAdmissionEvents map[uint]bool

	LockTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration

	RateLimitEnabled        bool
	RateLimitCapacity       int
	RateLimitRefillInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] no .env file, reading environment")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8082"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "allocation_db"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		SQLiteDSN:   os.Getenv("SQLITE_DSN"),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		HoldTTL:                envDur("HOLD_TTL", 15*time.Minute),
		SweepInterval:          envDur("SWEEP_INTERVAL", 30*time.Second),
		SweepBatch:             envInt("SWEEP_BATCH", 100),
		AllowPartialAdmission:  envBool("ALLOW_PARTIAL_ADMISSION", false),
		PartialAdmissionEvents: parseIDSet(os.Getenv("PARTIAL_ADMISSION_EVENTS")),

		LockTimeout:    envDur("LOCK_TIMEOUT", 3*time.Second),
		RetryAttempts:  envInt("RETRY_ATTEMPTS", 4),
		RetryBaseDelay: envDur("RETRY_BASE_DELAY", 25*time.Millisecond),

		RateLimitEnabled:        envBool("RATE_LIMIT_ENABLED", true),
		RateLimitCapacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RateLimitRefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// parseIDSet reads a comma separated list of event ids. Entries that are
// not ids are skipped.
func parseIDSet(raw string) map[uint]bool {
	set := map[uint]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			log.Printf("[Config] ignoring partial admission event %q", part)
			continue
		}
		set[uint(id)] = true
	}
	return set
}
