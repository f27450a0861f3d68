package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every tunable of the service.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Store    StoreConfig
	Dialogue DialogueConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	dialogue, err := loadDialogueConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Store: store, Dialogue: dialogue}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig describes the chat-model providers. Model is the primary provider;
// FallbackModels are tried in order when the primary fails or times out.
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	FallbackModels []string
	BaseURL        string
	Region         string
	Temperature    *float64
	MaxTokens      *int
	CallTimeout    time.Duration
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a provider instance for the given model name.
func (c AIConfig) NewChatModel(ctx context.Context, modelName string) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       modelName,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_CALL_TIMEOUT", 20*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	var fallbacks []string
	if raw := strings.TrimSpace(os.Getenv("ARK_FALLBACK_MODELS")); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				fallbacks = append(fallbacks, m)
			}
		}
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		FallbackModels: fallbacks,
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		CallTimeout:    timeout,
	}, nil
}

// StoreConfig selects and tunes the session store driver.
type StoreConfig struct {
	Driver        string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	CoalesceDelay time.Duration
}

func loadStoreConfig() (StoreConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 3*time.Hour)
	if err != nil {
		return StoreConfig{}, err
	}

	delay, err := parseDurationEnv("STORE_COALESCE_DELAY", 250*time.Millisecond)
	if err != nil {
		return StoreConfig{}, err
	}

	return StoreConfig{
		Driver:        getEnvOrDefault("STORE_DRIVER", "memory"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		SessionTTL:    ttl,
		CoalesceDelay: delay,
	}, nil
}

// DialogueConfig carries the product-tuned dialogue constants. Every value is
// overridable by environment.
type DialogueConfig struct {
	LockConfidence         float64 // language lock threshold
	SoftOverrideConfidence float64 // confidence needed to flip a soft-locked language
	HardOverrideConfidence float64 // confidence needed to flip a hard-locked language
	SoftLockTurns          int
	HardLockTurns          int
	ConfirmAttemptLimit    int // unclear answers before degrading to a direct yes/no
	IdentityAttemptLimit   int // free-form tries before an enumerated choice
	RatePerMinute          int
	RateBurst              int
	ActionTimeout          time.Duration
	TouchedTTL             time.Duration // how long "cancel it" can refer back
	DefaultTimezone        string
}

func loadDialogueConfig() (DialogueConfig, error) {
	cfg := DialogueConfig{
		LockConfidence:         0.8,
		SoftOverrideConfidence: 0.9,
		HardOverrideConfidence: 0.95,
		SoftLockTurns:          3,
		HardLockTurns:          6,
		ConfirmAttemptLimit:    3,
		IdentityAttemptLimit:   2,
		RatePerMinute:          20,
		RateBurst:              5,
		ActionTimeout:          10 * time.Second,
		TouchedTTL:             30 * time.Minute,
		DefaultTimezone:        getEnvOrDefault("DEFAULT_TIMEZONE", "Europe/Belgrade"),
	}

	if v, err := parseOptionalFloatEnv("LANG_LOCK_CONFIDENCE"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.LockConfidence = *v
	}

	if v, err := parseOptionalFloatEnv("LANG_SOFT_OVERRIDE"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.SoftOverrideConfidence = *v
	}

	if v, err := parseOptionalFloatEnv("LANG_HARD_OVERRIDE"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.HardOverrideConfidence = *v
	}

	if v, err := parseOptionalIntEnv("GATE_CONFIRM_ATTEMPTS"); err != nil {
		return cfg, err
	} else if v != nil && *v > 0 {
		cfg.ConfirmAttemptLimit = *v
	}

	if v, err := parseOptionalIntEnv("GATE_IDENTITY_ATTEMPTS"); err != nil {
		return cfg, err
	} else if v != nil && *v > 0 {
		cfg.IdentityAttemptLimit = *v
	}

	if v, err := parseOptionalIntEnv("RATE_PER_MINUTE"); err != nil {
		return cfg, err
	} else if v != nil && *v > 0 {
		cfg.RatePerMinute = *v
	}

	if v, err := parseOptionalIntEnv("RATE_BURST"); err != nil {
		return cfg, err
	} else if v != nil && *v > 0 {
		cfg.RateBurst = *v
	}

	timeout, err := parseDurationEnv("ACTION_TIMEOUT", cfg.ActionTimeout)
	if err != nil {
		return cfg, err
	}
	cfg.ActionTimeout = timeout

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
