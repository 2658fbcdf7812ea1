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

// Waitlist caps are fixed engine rules. Settings may only tighten them.
const (
	MaxWaitlistSize        = 15
	MaxWaitlistsPerStudent = 3
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Enrollment  EnrollmentConfig
	Cache       CacheConfig
	Consistency ConsistencyConfig
	Events      EventsConfig
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

// JWTConfig describes how identity tokens handed to the service are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentConfig carries the capacity rules of the waitlist engine.
type EnrollmentConfig struct {
	MaxWaitlistSize      int
	MaxWaitlistsPerUser  int
	DefaultMaxEnrollment int
}

// CacheConfig toggles the Redis-backed class listing cache.
type CacheConfig struct {
	Enabled  bool
	ClassTTL time.Duration
}

// ConsistencyConfig schedules the periodic invariant audit.
type ConsistencyConfig struct {
	Enabled  bool
	Schedule string
}

// EventsConfig sizes the enrollment event worker pool.
type EventsConfig struct {
	Workers int
	Retries int
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

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Enrollment = EnrollmentConfig{
		MaxWaitlistSize:      capped(positiveOr(v.GetInt("WAITLIST_MAX_SIZE"), MaxWaitlistSize), MaxWaitlistSize),
		MaxWaitlistsPerUser:  capped(positiveOr(v.GetInt("WAITLIST_MAX_PER_STUDENT"), MaxWaitlistsPerStudent), MaxWaitlistsPerStudent),
		DefaultMaxEnrollment: positiveOr(v.GetInt("CLASS_DEFAULT_MAX_ENROLLMENT"), 40),
	}

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("ENABLE_CACHE"),
		ClassTTL: parseDuration(v.GetString("CLASS_CACHE_TTL"), time.Minute),
	}

	cfg.Consistency = ConsistencyConfig{
		Enabled:  v.GetBool("ENABLE_CONSISTENCY_AUDIT"),
		Schedule: v.GetString("CONSISTENCY_AUDIT_SCHEDULE"),
	}

	cfg.Events = EventsConfig{
		Workers: positiveOr(v.GetInt("EVENT_WORKERS"), 1),
		Retries: positiveOr(v.GetInt("EVENT_RETRIES"), 3),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WAITLIST_MAX_SIZE", 15)
	v.SetDefault("WAITLIST_MAX_PER_STUDENT", 3)
	v.SetDefault("CLASS_DEFAULT_MAX_ENROLLMENT", 40)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CLASS_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_CONSISTENCY_AUDIT", false)
	v.SetDefault("CONSISTENCY_AUDIT_SCHEDULE", "@every 15m")

	v.SetDefault("EVENT_WORKERS", 1)
	v.SetDefault("EVENT_RETRIES", 3)
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
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
