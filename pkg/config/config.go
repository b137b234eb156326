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

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Reminders ReminderConfig
	Events    EventsConfig
	Realtime  RealtimeConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where uploaded file payloads are kept.
type StorageConfig struct {
	Driver        string
	LocalDir      string
	MaxUploadSize int64
	LinkSecret    string
	LinkTTL       time.Duration
	S3            S3Config
}

// S3Config carries credentials for the S3 blob driver. Endpoint is optional
// and enables S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ReminderConfig drives the periodic reminder sweep.
type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
	Timezone string
	LeaseKey string
	LeaseTTL time.Duration
}

// EventsConfig controls the outbound lifecycle event stream.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	Workers      int
	BufferSize   int
	MaxRetries   int
}

// RealtimeConfig tunes websocket delivery.
type RealtimeConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:      v.GetString("STORAGE_DIR"),
		MaxUploadSize: maxUpload,
		LinkSecret:    v.GetString("STORAGE_LINK_SECRET"),
		LinkTTL:       parseDuration(v.GetString("STORAGE_LINK_TTL"), 5*time.Minute),
		S3: S3Config{
			Bucket:       v.GetString("S3_BUCKET"),
			Region:       v.GetString("S3_REGION"),
			Endpoint:     v.GetString("S3_ENDPOINT"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
		},
	}

	cfg.Reminders = ReminderConfig{
		Enabled:  v.GetBool("ENABLE_REMINDERS"),
		Interval: parseDuration(v.GetString("REMINDER_INTERVAL"), time.Minute),
		Timezone: v.GetString("REMINDER_TIMEZONE"),
		LeaseKey: v.GetString("REMINDER_LEASE_KEY"),
		LeaseTTL: parseDuration(v.GetString("REMINDER_LEASE_TTL"), 50*time.Second),
	}

	cfg.Events = EventsConfig{
		KafkaBrokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
		Workers:      v.GetInt("EVENT_WORKERS"),
		BufferSize:   v.GetInt("EVENT_BUFFER_SIZE"),
		MaxRetries:   v.GetInt("EVENT_MAX_RETRIES"),
	}

	cfg.Realtime = RealtimeConfig{
		SendBuffer:   v.GetInt("REALTIME_SEND_BUFFER"),
		PingInterval: parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 30*time.Second),
		WriteTimeout: parseDuration(v.GetString("REALTIME_WRITE_TIMEOUT"), 10*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "docflow-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", 20*1024*1024)
	v.SetDefault("STORAGE_LINK_SECRET", "dev_link_secret")
	v.SetDefault("STORAGE_LINK_TTL", "5m")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDER_INTERVAL", "1m")
	v.SetDefault("REMINDER_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("REMINDER_LEASE_KEY", "docflow:reminder-sweep")
	v.SetDefault("REMINDER_LEASE_TTL", "50s")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "docflow.events")
	v.SetDefault("EVENT_WORKERS", 2)
	v.SetDefault("EVENT_BUFFER_SIZE", 256)
	v.SetDefault("EVENT_MAX_RETRIES", 3)

	v.SetDefault("REALTIME_SEND_BUFFER", 32)
	v.SetDefault("REALTIME_PING_INTERVAL", "30s")
	v.SetDefault("REALTIME_WRITE_TIMEOUT", "10s")
}

// Location resolves the reminder timezone, falling back to UTC.
func (c ReminderConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
