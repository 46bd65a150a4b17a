// Package config loads convstore configuration from a YAML file, a .env file and
// CONVSTORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creastat/convstore"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONVSTORE_CACHE_DRIVER.
const EnvPrefix = "CONVSTORE"

// Config is the full service configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Store      StoreConfig      `mapstructure:"store"`
	Candidates CandidatesConfig `mapstructure:"candidates"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Speech     SpeechConfig     `mapstructure:"speech"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=auto text json"`
}

// CacheConfig configures the session cache.
type CacheConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=redis memory"`
	RedisAddr      string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL            time.Duration `mapstructure:"ttl" validate:"gt=0"`
	TouchOnHit     bool          `mapstructure:"touch_on_hit"`
	SerializeTurns bool          `mapstructure:"serialize_turns"`
}

// StoreConfig configures the conversation log.
type StoreConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=sql supabase"`
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN             string        `mapstructure:"dsn" validate:"required_if=Backend sql"`
	SupabaseURL     string        `mapstructure:"supabase_url" validate:"required_if=Backend supabase"`
	SupabaseKey     string        `mapstructure:"supabase_key" validate:"required_if=Backend supabase"`
	ProfileCacheTTL time.Duration `mapstructure:"profile_cache_ttl" validate:"gte=0"`
}

// CandidatesConfig configures candidate ranking.
type CandidatesConfig struct {
	Backend      string  `mapstructure:"backend" validate:"oneof=chromem qdrant none"`
	Limit        int     `mapstructure:"limit" validate:"gt=0"`
	ChromemDir   string  `mapstructure:"chromem_dir"`
	QdrantURL    string  `mapstructure:"qdrant_url" validate:"required_if=Backend qdrant"`
	QdrantAPIKey string  `mapstructure:"qdrant_api_key"`
	Collection   string  `mapstructure:"collection" validate:"required"`
	SolvedACURL  string  `mapstructure:"solvedac_url" validate:"required"`
	RateLimit    float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// InferenceConfig selects the model backend.
type InferenceConfig struct {
	Backend      string  `mapstructure:"backend" validate:"oneof=openai ollama"`
	Model        string  `mapstructure:"model" validate:"required"`
	APIKey       string  `mapstructure:"api_key" validate:"required_if=Backend openai"`
	BaseURL      string  `mapstructure:"base_url"`
	Temperature  float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TokenLimit   int     `mapstructure:"token_limit" validate:"gte=0"`
	MessageLimit int     `mapstructure:"message_limit" validate:"gte=0"`
}

// SpeechConfig configures the speech payload cache.
type SpeechConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration. path may be empty, in which case only defaults, .env and
// the environment apply.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting as ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", convstore.ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", convstore.ErrInvalidConfig, err)
	}
	return nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.touch_on_hit", true)
	v.SetDefault("cache.serialize_turns", true)

	v.SetDefault("store.backend", "sql")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "convstore.db")
	v.SetDefault("store.supabase_url", "")
	v.SetDefault("store.supabase_key", "")
	v.SetDefault("store.profile_cache_ttl", "5m")

	v.SetDefault("candidates.backend", "chromem")
	v.SetDefault("candidates.limit", 20)
	v.SetDefault("candidates.chromem_dir", "")
	v.SetDefault("candidates.qdrant_url", "")
	v.SetDefault("candidates.qdrant_api_key", "")
	v.SetDefault("candidates.collection", "problems")
	v.SetDefault("candidates.solvedac_url", "https://solved.ac")
	v.SetDefault("candidates.rate_limit", 5.0)

	v.SetDefault("inference.backend", "openai")
	v.SetDefault("inference.model", "gpt-4o-mini")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.base_url", "")
	v.SetDefault("inference.temperature", 0.7)
	v.SetDefault("inference.token_limit", 6000)
	v.SetDefault("inference.message_limit", 40)

	v.SetDefault("speech.ttl", "5m")
}
