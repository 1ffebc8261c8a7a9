package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mithaq/backend/matching"
)

// Config is the full server configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Moderation ModerationConfig `mapstructure:"moderation"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig configures the compatibility cache. An empty address turns
// caching off.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MatchingConfig struct {
	Weights             matching.Weights `mapstructure:"weights"`
	CompletionThreshold int              `mapstructure:"completion_threshold"`
	CandidatePool       int              `mapstructure:"candidate_pool"`
	RecommendationLimit int              `mapstructure:"recommendation_limit"`
	Workers             int              `mapstructure:"workers"`
}

type ModerationConfig struct {
	Words matching.WordLists `mapstructure:"words"`
}

const devJWTSecret = "dev_secret_change_me"

// loadConfig reads .env, then the optional YAML file at path (or config.yaml
// under ./configs and .), then environment overrides.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Names the old deployment used.
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT", "GO_ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	w := matching.DefaultWeights()
	words := matching.DefaultWordLists()

	v.SetDefault("app.name", "mithaq")
	v.SetDefault("app.environment", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3001"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "10m")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("matching.weights.age", w.Age)
	v.SetDefault("matching.weights.education", w.Education)
	v.SetDefault("matching.weights.location", w.Location)
	v.SetDefault("matching.weights.religious", w.Religious)
	v.SetDefault("matching.weights.marriage_type", w.MarriageType)
	v.SetDefault("matching.weights.children", w.Children)
	v.SetDefault("matching.weights.employment", w.Employment)
	v.SetDefault("matching.completion_threshold", matching.DefaultCompletionThreshold)
	v.SetDefault("matching.candidate_pool", 200)
	v.SetDefault("matching.recommendation_limit", 10)
	v.SetDefault("matching.workers", 8)
	v.SetDefault("moderation.words.arabic", words.Arabic)
	v.SetDefault("moderation.words.english", words.English)
}

// applyDefaults covers values a config file may have zeroed out.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = 10 * time.Minute
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Auth.JWTSecret == "" && cfg.App.Environment == "development" {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Matching.CompletionThreshold == 0 {
		cfg.Matching.CompletionThreshold = matching.DefaultCompletionThreshold
	}
	if cfg.Matching.CandidatePool <= 0 {
		cfg.Matching.CandidatePool = 200
	}
	if cfg.Matching.RecommendationLimit <= 0 {
		cfg.Matching.RecommendationLimit = 10
	}
	if cfg.Matching.Workers <= 0 {
		cfg.Matching.Workers = 8
	}
	if len(cfg.Moderation.Words.Arabic) == 0 && len(cfg.Moderation.Words.English) == 0 {
		cfg.Moderation.Words = matching.DefaultWordLists()
	}
}

func validateConfig(cfg *Config) error {
	if err := cfg.Matching.Weights.Validate(); err != nil {
		return err
	}
	if cfg.Matching.CompletionThreshold < 0 || cfg.Matching.CompletionThreshold > 100 {
		return fmt.Errorf("matching.completion_threshold must be within 0..100")
	}
	return nil
}

// validateForServe checks the keys only the HTTP server needs.
func (c *Config) validateForServe() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required outside development")
	}
	return nil
}
