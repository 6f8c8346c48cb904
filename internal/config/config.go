package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the quiz progress service.
type Config struct {
	AppName        string
	AppEnv         string
	AppPort        string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	NATSURL        string
	EventsSubject  string
	RateLimitMax   int
	RateLimitEvery time.Duration
	Progress       ProgressConfig
}

// ProgressConfig tunes the gating rules and the progress write path.
type ProgressConfig struct {
	MaxAttempts     int
	PassingScore    float64
	Level1PassRatio float64
	LockTTL         time.Duration
	StatusCacheTTL  time.Duration
	Timeout         time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Quiz API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject", "gema.quiz.progress")
	v.SetDefault("ratelimit.max", 30)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("progress.max_attempts", 4)
	v.SetDefault("progress.passing_score", 70)
	v.SetDefault("progress.level1_pass_ratio", 1.0)
	v.SetDefault("progress.lock_ttl", "5s")
	v.SetDefault("progress.status_cache_ttl", "30s")
	v.SetDefault("progress.timeout", "3s")

	durations := map[string]time.Duration{}
	for _, key := range []string{"ratelimit.window", "progress.lock_ttl", "progress.status_cache_ttl", "progress.timeout"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		AppPort:        v.GetString("app.port"),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		JWTSecret:      v.GetString("jwt.secret"),
		NATSURL:        v.GetString("nats.url"),
		EventsSubject:  v.GetString("events.subject"),
		RateLimitMax:   v.GetInt("ratelimit.max"),
		RateLimitEvery: durations["ratelimit.window"],
		Progress: ProgressConfig{
			MaxAttempts:     v.GetInt("progress.max_attempts"),
			PassingScore:    v.GetFloat64("progress.passing_score"),
			Level1PassRatio: v.GetFloat64("progress.level1_pass_ratio"),
			LockTTL:         durations["progress.lock_ttl"],
			StatusCacheTTL:  durations["progress.status_cache_ttl"],
			Timeout:         durations["progress.timeout"],
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.Progress.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("progress max attempts must be positive")
	}
	if cfg.Progress.PassingScore <= 0 || cfg.Progress.PassingScore > 100 {
		return Config{}, fmt.Errorf("progress passing score must be within (0, 100]")
	}
	if cfg.Progress.Level1PassRatio <= 0 || cfg.Progress.Level1PassRatio > 1 {
		return Config{}, fmt.Errorf("level 1 pass ratio must be within (0, 1]")
	}

	return cfg, nil
}
