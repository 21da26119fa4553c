package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the contractlens server.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	AI       AIConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	MaxUploadBytes     int64
	MaxJSONBytes       int64
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Driver           string
	URL              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	MigrationsDir    string
	ApplicationName  string
	StatementTimeout time.Duration
}

// RedisConfig locates the cache. An empty URL with the memory store driver
// selects the in-process cache.
type RedisConfig struct {
	URL string
}

// AuthConfig verifies bearer tokens issued by the external identity service.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// StorageConfig points at the S3-compatible bucket that keeps uploaded
// originals. Storage is disabled when Endpoint is empty.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func (c StorageConfig) Enabled() bool { return c.Endpoint != "" }

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	MaxContentBytes  int
	MaxTokens        int
	FindingsMode     string
	DraftProviders   []string
	DraftJoinPolicy  string
	OpenAI           OpenAIConfig
	Gemini           GeminiConfig
	Anthropic        AnthropicConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

// AnalysisConfig controls the sweep that fails documents stuck in analyzing.
type AnalysisConfig struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

var validProviders = map[string]bool{
	"openai":    true,
	"gemini":    true,
	"anthropic": true,
	"ollama":    true,
	"vllm":      true,
	"mock":      true,
}

var validJoinPolicies = map[string]bool{
	"all_or_nothing": true,
	"best_effort":    true,
}

// LoadDotEnv loads variables from path into the environment without
// overriding values that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("CONTRACTLENS_PORT", 8080),
			Env:                envString("CONTRACTLENS_ENV", "development"),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			MaxUploadBytes:     int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
			MaxJSONBytes:       int64(envInt("MAX_JSON_BYTES", 2<<20)),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Driver:           envString("STORE_DRIVER", "postgres"),
			URL:              os.Getenv("DATABASE_URL"),
			MaxOpenConns:     envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:    envString("DATABASE_MIGRATIONS_DIR", "migrations"),
			ApplicationName:  envString("DATABASE_APPLICATION_NAME", "contractlens"),
			StatementTimeout: envDuration("DATABASE_STATEMENT_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    os.Getenv("JWT_ISSUER"),
			Audience:  os.Getenv("JWT_AUDIENCE"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "contractlens-uploads"),
			Region:    envString("MINIO_REGION", "us-east-1"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			MaxContentBytes:  envInt("AI_MAX_CONTENT_BYTES", 100_000),
			MaxTokens:        envInt("AI_MAX_TOKENS", 4096),
			FindingsMode:     envString("ANALYSIS_FINDINGS_MODE", "lenient"),
			DraftProviders:   envList("DRAFT_PROVIDERS", []string{"openai", "gemini"}),
			DraftJoinPolicy:  envString("DRAFT_JOIN_POLICY", "all_or_nothing"),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.0-flash"),
				BaseURL: os.Getenv("GEMINI_BASE_URL"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
		},
		Analysis: AnalysisConfig{
			StaleAfter:    envDuration("ANALYSIS_STALE_AFTER", 10*time.Minute),
			SweepInterval: envDuration("ANALYSIS_SWEEP_INTERVAL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, memory; got %q", c.Database.Driver)
	}

	if c.Redis.URL == "" && c.Database.Driver != "memory" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.MaxUploadBytes <= 0 || c.Server.MaxJSONBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES and MAX_JSON_BYTES must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 && c.Server.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}

	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if err := c.validateProvider("AI_PROVIDER", c.AI.Provider); err != nil {
		return err
	}

	if len(c.AI.DraftProviders) != 2 {
		return fmt.Errorf("DRAFT_PROVIDERS must name exactly two providers; got %d", len(c.AI.DraftProviders))
	}
	for _, p := range c.AI.DraftProviders {
		if err := c.validateProvider("DRAFT_PROVIDERS", p); err != nil {
			return err
		}
	}
	if c.AI.DraftProviders[0] == c.AI.DraftProviders[1] {
		return fmt.Errorf("DRAFT_PROVIDERS must name two different providers; got %q twice", c.AI.DraftProviders[0])
	}
	if !validJoinPolicies[c.AI.DraftJoinPolicy] {
		return fmt.Errorf("DRAFT_JOIN_POLICY must be one of all_or_nothing, best_effort; got %q", c.AI.DraftJoinPolicy)
	}

	if c.AI.FindingsMode != "lenient" && c.AI.FindingsMode != "strict" {
		return fmt.Errorf("ANALYSIS_FINDINGS_MODE must be one of lenient, strict; got %q", c.AI.FindingsMode)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}
	if c.AI.MaxContentBytes <= 0 {
		return fmt.Errorf("AI_MAX_CONTENT_BYTES must be positive")
	}

	if c.Analysis.StaleAfter <= c.AI.InferenceTimeout {
		return fmt.Errorf("ANALYSIS_STALE_AFTER (%s) must exceed the inference timeout (%s)",
			c.Analysis.StaleAfter, c.AI.InferenceTimeout)
	}
	if c.Analysis.SweepInterval <= 0 {
		return fmt.Errorf("ANALYSIS_SWEEP_INTERVAL must be positive")
	}

	return nil
}

func (c *Config) validateProvider(key, name string) error {
	if !validProviders[name] {
		return fmt.Errorf("%s must be one of openai, gemini, anthropic, ollama, vllm, mock; got %q", key, name)
	}
	switch name {
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when %s uses openai", key)
		}
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when %s uses gemini", key)
		}
	case "anthropic":
		if c.AI.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when %s uses anthropic", key)
		}
	case "vllm":
		if c.AI.VLLM.Model == "" {
			return fmt.Errorf("VLLM_MODEL is required when %s uses vllm", key)
		}
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
