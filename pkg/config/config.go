package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Geofence     GeofenceConfig
	Location     LocationConfig
	Queue        QueueConfig
	Connectivity ConnectivityConfig
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
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GeofenceConfig holds the validation gate thresholds.
type GeofenceConfig struct {
	MinAccuracyMeters   float64
	MaxLocationAge      time.Duration
	DefaultRadiusMeters float64
	DefaultLocationID   string
}

// LocationConfig bounds GPS sample acquisition.
type LocationConfig struct {
	AcquireTimeout time.Duration
	HighAccuracy   bool
}

// QueueConfig controls the durable sync queue.
type QueueConfig struct {
	Dir            string
	MaxRetries     int
	DrainOnEnqueue bool
}

// ConnectivityConfig tunes the remote-reachability prober.
type ConnectivityConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Load reads configuration from .env and the process environment.
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
		if !errors.As(err, &notFound) {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		CacheTTL: parseDuration(v.GetString("REDIS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Geofence = GeofenceConfig{
		MinAccuracyMeters:   v.GetFloat64("GEOFENCE_MIN_ACCURACY_METERS"),
		MaxLocationAge:      parseDuration(v.GetString("GEOFENCE_MAX_LOCATION_AGE"), time.Minute),
		DefaultRadiusMeters: v.GetFloat64("GEOFENCE_DEFAULT_RADIUS_METERS"),
		DefaultLocationID:   v.GetString("GEOFENCE_DEFAULT_LOCATION_ID"),
	}

	cfg.Location = LocationConfig{
		AcquireTimeout: parseDuration(v.GetString("LOCATION_ACQUIRE_TIMEOUT"), 15*time.Second),
		HighAccuracy:   v.GetBool("LOCATION_HIGH_ACCURACY"),
	}

	cfg.Queue = QueueConfig{
		Dir:            v.GetString("QUEUE_DIR"),
		MaxRetries:     v.GetInt("QUEUE_MAX_RETRIES"),
		DrainOnEnqueue: v.GetBool("QUEUE_DRAIN_ON_ENQUEUE"),
	}

	cfg.Connectivity = ConnectivityConfig{
		ProbeInterval: parseDuration(v.GetString("CONNECTIVITY_PROBE_INTERVAL"), 30*time.Second),
		ProbeTimeout:  parseDuration(v.GetString("CONNECTIVITY_PROBE_TIMEOUT"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8090)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "sma_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GEOFENCE_MIN_ACCURACY_METERS", 50)
	v.SetDefault("GEOFENCE_MAX_LOCATION_AGE", "60s")
	v.SetDefault("GEOFENCE_DEFAULT_RADIUS_METERS", 500)
	v.SetDefault("GEOFENCE_DEFAULT_LOCATION_ID", "default")

	v.SetDefault("LOCATION_ACQUIRE_TIMEOUT", "15s")
	v.SetDefault("LOCATION_HIGH_ACCURACY", true)

	v.SetDefault("QUEUE_DIR", "./data/queue")
	v.SetDefault("QUEUE_MAX_RETRIES", 3)
	v.SetDefault("QUEUE_DRAIN_ON_ENQUEUE", true)

	v.SetDefault("CONNECTIVITY_PROBE_INTERVAL", "30s")
	v.SetDefault("CONNECTIVITY_PROBE_TIMEOUT", "5s")
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
