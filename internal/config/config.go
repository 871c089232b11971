package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Values come from defaults, then the
// YAML file named by VIBEMIND_CONFIG, then environment variables.
type Config struct {
	VisionProvider   string `yaml:"vision_provider"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiBaseURL    string `yaml:"gemini_base_url"`
	GeminiAPIVersion string `yaml:"gemini_api_version"`
	GeminiModel      string `yaml:"gemini_model"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIModel      string `yaml:"openai_model"`

	TelegramToken string `yaml:"telegram_token"`

	ProfilesDir  string `yaml:"profiles_dir"`
	PlatformsDir string `yaml:"platforms_dir"`
	OutputDir    string `yaml:"output_dir"`
	IndexPath    string `yaml:"index_path"`
	WatchConfigs bool   `yaml:"watch_configs"`

	WebAddr string `yaml:"web_addr"`

	LogLevel   string `yaml:"log_level"`
	Debug      bool   `yaml:"debug"`
	PreferIPv4 bool   `yaml:"prefer_ipv4"`

	MaxDimension int    `yaml:"max_dimension"`
	ColorCount   int    `yaml:"color_count"`
	ColorSeed    uint64 `yaml:"color_seed"`

	MediaGroupDebounce time.Duration `yaml:"media_group_debounce"`
	MaxConcurrent      int           `yaml:"max_concurrent"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
}

func Default() Config {
	return Config{
		VisionProvider:     "gemini",
		GeminiBaseURL:      "https://generativelanguage.googleapis.com",
		GeminiAPIVersion:   "v1beta",
		OpenAIBaseURL:      "https://api.openai.com/v1",
		ProfilesDir:        "configs/profiles",
		PlatformsDir:       "configs/platforms",
		OutputDir:          "output",
		IndexPath:          "output/index.db",
		WebAddr:            ":8080",
		LogLevel:           "info",
		PreferIPv4:         true,
		MaxDimension:       512,
		ColorCount:         5,
		ColorSeed:          42,
		MediaGroupDebounce: 1200 * time.Millisecond,
		MaxConcurrent:      4,
		RequestTimeout:     180 * time.Second,
		HTTPTimeout:        180 * time.Second,
	}
}

func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("VIBEMIND_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.VisionProvider = strings.ToLower(getEnv("VISION_PROVIDER", cfg.VisionProvider))
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiBaseURL = getEnv("GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.GeminiAPIVersion = getEnv("GEMINI_API_VERSION", cfg.GeminiAPIVersion)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)

	cfg.ProfilesDir = getEnv("PROFILES_DIR", cfg.ProfilesDir)
	cfg.PlatformsDir = getEnv("PLATFORMS_DIR", cfg.PlatformsDir)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.IndexPath = getEnv("INDEX_PATH", cfg.IndexPath)
	cfg.WatchConfigs = getEnvBool("WATCH_CONFIGS", cfg.WatchConfigs)
	cfg.WebAddr = getEnv("WEB_ADDR", cfg.WebAddr)

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
	cfg.PreferIPv4 = getEnvBool("PREFER_IPV4", cfg.PreferIPv4)

	cfg.MaxDimension = getEnvInt("MAX_IMAGE_DIMENSION", cfg.MaxDimension)
	cfg.ColorCount = getEnvInt("COLOR_COUNT", cfg.ColorCount)
	cfg.ColorSeed = uint64(getEnvInt("COLOR_SEED", int(cfg.ColorSeed)))

	cfg.MediaGroupDebounce = getEnvDuration("MEDIA_GROUP_DEBOUNCE", cfg.MediaGroupDebounce)
	cfg.MaxConcurrent = getEnvInt("MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)

	switch cfg.VisionProvider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("unknown VISION_PROVIDER %q", cfg.VisionProvider)
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxDimension < 1 {
		cfg.MaxDimension = 512
	}
	if cfg.ColorCount < 1 {
		cfg.ColorCount = 5
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

// VisionAPIKey returns the key for the selected provider.
func (c Config) VisionAPIKey() string {
	if c.VisionProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func (c Config) RequireVision() error {
	if c.VisionAPIKey() != "" {
		return nil
	}
	if c.VisionProvider == "openai" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return errors.New("GEMINI_API_KEY is required")
}

func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s", "1m") or a bare number of
// seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
