package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Lock drivers.
const (
	LockDriverMemory = "memory"
	LockDriverRedis  = "redis"
)

// Artifact storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Locks       LockConfig
	CORS        CORSConfig
	Log         LogConfig
	Exports     ExportsConfig
	Certificate CertificateConfig
}

// StoreConfig selects the student store implementation.
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LockConfig configures the per-record mutation guard.
type LockConfig struct {
	Driver string
	TTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportsConfig controls where published exports are stored and how long links live.
type ExportsConfig struct {
	StorageDriver   string
	StorageDir      string
	S3              S3Config
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupSchedule string
}

// S3Config describes an S3-compatible bucket (AWS or MinIO).
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// CertificateConfig tunes certificate rendering.
type CertificateConfig struct {
	LogoSource      string
	SignatureSource string
	LayoutFile      string
	DateLocale      string
	AssetTimeout    time.Duration
	QueueBuffer     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{
		Driver:     strings.ToLower(v.GetString("STORE_DRIVER")),
		SQLitePath: v.GetString("SQLITE_PATH"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Locks = LockConfig{
		Driver: strings.ToLower(v.GetString("LOCK_DRIVER")),
		TTL:    parseDuration(v.GetString("LOCK_TTL"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Exports = ExportsConfig{
		StorageDriver: strings.ToLower(v.GetString("EXPORTS_STORAGE_DRIVER")),
		StorageDir:    v.GetString("EXPORTS_STORAGE_DIR"),
		S3: S3Config{
			Bucket:          v.GetString("EXPORTS_S3_BUCKET"),
			Region:          v.GetString("EXPORTS_S3_REGION"),
			Endpoint:        v.GetString("EXPORTS_S3_ENDPOINT"),
			Prefix:          v.GetString("EXPORTS_S3_PREFIX"),
			AccessKeyID:     v.GetString("EXPORTS_S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("EXPORTS_S3_SECRET_ACCESS_KEY"),
			PathStyle:       v.GetBool("EXPORTS_S3_PATH_STYLE"),
		},
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
	}

	queueBuffer := v.GetInt("CERT_QUEUE_BUFFER")
	if queueBuffer <= 0 {
		queueBuffer = 16
	}
	cfg.Certificate = CertificateConfig{
		LogoSource:      v.GetString("CERT_LOGO_SOURCE"),
		SignatureSource: v.GetString("CERT_SIGNATURE_SOURCE"),
		LayoutFile:      v.GetString("CERT_LAYOUT_FILE"),
		DateLocale:      v.GetString("CERT_DATE_LOCALE"),
		AssetTimeout:    parseDuration(v.GetString("CERT_ASSET_TIMEOUT"), 10*time.Second),
		QueueBuffer:     queueBuffer,
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("SQLITE_PATH", "file:roster.db?_pragma=busy_timeout(5000)")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_roster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOCK_DRIVER", LockDriverMemory)
	v.SetDefault("LOCK_TTL", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORTS_STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_S3_BUCKET", "")
	v.SetDefault("EXPORTS_S3_REGION", "us-east-1")
	v.SetDefault("EXPORTS_S3_ENDPOINT", "")
	v.SetDefault("EXPORTS_S3_PREFIX", "exports/")
	v.SetDefault("EXPORTS_S3_PATH_STYLE", false)
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "@every 1h")

	v.SetDefault("CERT_LOGO_SOURCE", "")
	v.SetDefault("CERT_SIGNATURE_SOURCE", "")
	v.SetDefault("CERT_LAYOUT_FILE", "")
	v.SetDefault("CERT_DATE_LOCALE", "en-US")
	v.SetDefault("CERT_ASSET_TIMEOUT", "10s")
	v.SetDefault("CERT_QUEUE_BUFFER", 16)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
