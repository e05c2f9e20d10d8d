package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	AutoMigrate bool
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	AllowOrigins        string
	UploadMaxMB         int
	OverviewCacheTTL    time.Duration
	NotificationChannel string
	StreamKeepAlive     time.Duration
	SweepInterval       time.Duration
	SweepStaleAfter     time.Duration
	RateLimitMax        int
	RateLimitWindow     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether storage credentials are complete.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration from PROJTRACK_* environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROJTRACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Project Tracker API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("cloudinary.folder", "projtrack/documents")
	v.SetDefault("kafka.topic", "projtrack.lifecycle")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("upload.max_mb", 25)
	v.SetDefault("overview.cache_ttl", "2m")
	v.SetDefault("notification.channel", "projtrack")
	v.SetDefault("notification.keepalive", "30s")
	v.SetDefault("sweep.interval", "1m")
	v.SetDefault("sweep.stale_after", "5m")
	v.SetDefault("ratelimit.max", 120)
	v.SetDefault("ratelimit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"overview.cache_ttl", "notification.keepalive", "sweep.interval", "sweep.stale_after", "ratelimit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		AutoMigrate:            v.GetBool("database.auto_migrate"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		KafkaBrokers:           splitList(v.GetString("kafka.brokers")),
		KafkaTopic:             v.GetString("kafka.topic"),
		KafkaUsername:          v.GetString("kafka.username"),
		KafkaPassword:          v.GetString("kafka.password"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AllowOrigins:           v.GetString("cors.allow_origins"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		OverviewCacheTTL:       durations["overview.cache_ttl"],
		NotificationChannel:    v.GetString("notification.channel"),
		StreamKeepAlive:        durations["notification.keepalive"],
		SweepInterval:          durations["sweep.interval"],
		SweepStaleAfter:        durations["sweep.stale_after"],
		RateLimitMax:           v.GetInt("ratelimit.max"),
		RateLimitWindow:        durations["ratelimit.window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 25
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 120
	}

	return cfg, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
