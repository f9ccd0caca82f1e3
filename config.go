package litassist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/litassist/llm"
)

// Config holds all configuration for the assistant and its servers.
type Config struct {
	// HTTP server
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	StaticDir      string   `json:"static_dir" yaml:"static_dir"` // Served at / when set
	UploadDir      string   `json:"upload_dir" yaml:"upload_dir"` // Temporary upload storage; defaults to the OS temp dir
	MaxUploadBytes int64    `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	AuthToken      string   `json:"auth_token" yaml:"auth_token"` // Optional bearer token for /api routes

	// RateLimitPerMinute caps analyze requests per process. Zero disables it.
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// AnalyzeTimeout bounds one analysis (extraction plus model call).
	AnalyzeTimeout time.Duration `json:"analyze_timeout" yaml:"analyze_timeout"`

	// LLM provider
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// PromptPath overrides the built-in analysis template.
	PromptPath string `json:"prompt_path" yaml:"prompt_path"`

	// MaxInputChars truncates extracted text before it is sent to the model.
	// Zero sends the full text.
	MaxInputChars int `json:"max_input_chars" yaml:"max_input_chars"`

	// History. When HistoryEnabled is false no database is opened.
	HistoryEnabled bool `json:"history_enabled" yaml:"history_enabled"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.litassist/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set: "home" (default) or "local".
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// ReuseAnalyses returns the stored analysis for a PDF whose content hash
	// was analyzed before instead of calling the model again.
	ReuseAnalyses bool `json:"reuse_analyses" yaml:"reuse_analyses"`

	// Retention
	RetentionDays     int    `json:"retention_days" yaml:"retention_days"`
	RetentionSchedule string `json:"retention_schedule" yaml:"retention_schedule"` // cron spec
}

// LLMConfig configures the chat-completion provider.
type LLMConfig struct {
	Provider   string        `json:"provider" yaml:"provider"` // openai, ollama, lmstudio, openrouter, groq, xai, gemini, custom
	Model      string        `json:"model" yaml:"model"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

func (c LLMConfig) provider() llm.Config {
	return llm.Config{
		Provider:   c.Provider,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
}

// DefaultMaxUploadBytes is the 10MB upload limit.
const DefaultMaxUploadBytes = 10 << 20

// DefaultConfig returns a Config matching the hosted OpenAI setup.
// History is stored in ~/.litassist/litassist.db.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              5001,
		AllowedOrigins:    []string{"http://localhost:5001", "http://127.0.0.1:5001"},
		MaxUploadBytes:    DefaultMaxUploadBytes,
		AnalyzeTimeout:    5 * time.Minute,
		HistoryEnabled:    true,
		DBName:            "litassist",
		StorageDir:        "home",
		RetentionSchedule: "@daily",
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      llm.DefaultOpenAIModel,
			Timeout:    5 * time.Minute,
			MaxRetries: llm.DefaultMaxRetries,
		},
	}
}

// LoadConfig reads a YAML or JSON file (by extension) over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv loads a .env file when present and applies environment
// overrides. Malformed numeric values are reported as ErrInvalidConfig.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	setString("HOST", &cfg.Host)
	if err := setInt("PORT", &cfg.Port); err != nil {
		return err
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	setString("LITASSIST_PROVIDER", &cfg.LLM.Provider)
	setString("LITASSIST_MODEL", &cfg.LLM.Model)
	setString("LITASSIST_BASE_URL", &cfg.LLM.BaseURL)
	setString("LITASSIST_PROMPT_PATH", &cfg.PromptPath)
	setString("LITASSIST_DB_PATH", &cfg.DBPath)
	setString("LITASSIST_AUTH_TOKEN", &cfg.AuthToken)
	setString("LITASSIST_STATIC_DIR", &cfg.StaticDir)
	setString("LITASSIST_UPLOAD_DIR", &cfg.UploadDir)
	if err := setInt("LITASSIST_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return err
	}
	if err := setInt("LITASSIST_RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute); err != nil {
		return err
	}

	setString("LITASSIST_API_KEY", &cfg.LLM.APIKey)
	if cfg.LLM.APIKey == "" {
		if key := providerKeyEnv[cfg.LLM.Provider]; key != "" {
			cfg.LLM.APIKey = strings.TrimSpace(os.Getenv(key))
		}
	}
	return nil
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"xai":        "XAI_API_KEY",
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "max_upload_bytes must be positive")
	}
	if c.LLM.Provider == "" {
		problems = append(problems, "llm.provider is required")
	} else if _, err := llm.NewProvider(llm.Config{Provider: c.LLM.Provider}); err != nil {
		problems = append(problems, err.Error())
	}
	if c.RetentionDays < 0 {
		problems = append(problems, "retention_days must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		problems = append(problems, "rate_limit_per_minute must not be negative")
	}
	if c.MaxInputChars < 0 {
		problems = append(problems, "max_input_chars must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "litassist"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".litassist", name+".db")
	}
}
