package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	StoreDriver string
	DBDSN       string
	MongoURI    string
	MongoDB     string

	RedisAddress  string
	RedisPassword string
	LockTTL       time.Duration
	LockWait      time.Duration

	UploadMaxMB       int64
	ResumeInterval    time.Duration
	DefaultLengthUnit string
}

// LoadConfig reads the environment. The caller loads .env first.
func LoadConfig() Config {
	return Config{
		Port:      getenv("PORT", "8080"),
		Env:       strings.ToLower(getenv("APP_ENV", "development")),
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenv("LOG_FORMAT", "console")),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		DBDSN:       postgresDSN(),
		MongoURI:    getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getenv("MONGO_DB", "printstock"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       getDuration("LOCK_TTL", 30*time.Second),
		LockWait:      getDuration("LOCK_WAIT", 10*time.Second),

		UploadMaxMB:       getInt("UPLOAD_MAX_MB", 25),
		ResumeInterval:    getDuration("RESUME_INTERVAL", time.Minute),
		DefaultLengthUnit: getenv("DEFAULT_LENGTH_UNIT", "mtr"),
	}
}

func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

func postgresDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("DB_DSN")); dsn != "" {
		return dsn
	}
	host := getenv("DB_HOST", "localhost")
	port := getenv("DB_PORT", "5432")
	user := getenv("DB_USER", getenv("POSTGRES_USER", "postgres"))
	pass := getenv("DB_PASSWORD", getenv("POSTGRES_PASSWORD", "postgres"))
	name := getenv("DB_NAME", getenv("POSTGRES_DB", "printstock"))
	ssl := getenv("DB_SSLMODE", "disable")
	return "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=" + ssl
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func getInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, using default")
		return def
	}
	return n
}
