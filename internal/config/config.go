package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the operator CLI.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	RealtimeChannel string
	JWTSecret       string
	LogLevel        string

	BambooURL              string
	BambooUser             string
	BambooPassword         string
	BambooTimeout          time.Duration
	BambooAssignmentRepo   string
	BambooArtifactMaxDepth int
	BambooArtifactMaxBytes int64

	LTIConsumerKey    string
	LTIConsumerSecret string
	LTITimeout        time.Duration

	RebuildConcurrency int

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Validate checks the settings the HTTP service cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.BambooURL == "" {
		return fmt.Errorf("bamboo url must be provided")
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARTEMIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Artemis CI API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "artemis")
	v.SetDefault("log.level", "info")
	v.SetDefault("bamboo.timeout", "10s")
	v.SetDefault("bamboo.assignment_repo", "assignment")
	v.SetDefault("bamboo.artifact_max_depth", 5)
	v.SetDefault("bamboo.artifact_max_bytes", 64<<20)
	v.SetDefault("lti.timeout", "10s")
	v.SetDefault("rebuild.concurrency", 4)
	v.SetDefault("cloudinary.folder", "build-artifacts")

	bambooTimeout, err := parseDuration(v, "bamboo.timeout", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	ltiTimeout, err := parseDuration(v, "lti.timeout", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		RealtimeChannel: v.GetString("realtime.channel"),
		JWTSecret:       v.GetString("jwt.secret"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),

		BambooURL:              v.GetString("bamboo.url"),
		BambooUser:             v.GetString("bamboo.user"),
		BambooPassword:         v.GetString("bamboo.password"),
		BambooTimeout:          bambooTimeout,
		BambooAssignmentRepo:   v.GetString("bamboo.assignment_repo"),
		BambooArtifactMaxDepth: v.GetInt("bamboo.artifact_max_depth"),
		BambooArtifactMaxBytes: v.GetInt64("bamboo.artifact_max_bytes"),

		LTIConsumerKey:    v.GetString("lti.consumer_key"),
		LTIConsumerSecret: v.GetString("lti.consumer_secret"),
		LTITimeout:        ltiTimeout,

		RebuildConcurrency: v.GetInt("rebuild.concurrency"),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.BambooArtifactMaxDepth <= 0 {
		cfg.BambooArtifactMaxDepth = 5
	}
	if cfg.BambooArtifactMaxBytes <= 0 {
		cfg.BambooArtifactMaxBytes = 64 << 20
	}
	if cfg.RebuildConcurrency <= 0 {
		cfg.RebuildConcurrency = 4
	}
	if cfg.RealtimeChannel == "" {
		cfg.RealtimeChannel = "artemis"
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return fallback, nil
	}
	return value, nil
}
