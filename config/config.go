package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr      string `yaml:"http_addr"`
	WebEnabled    bool   `yaml:"web_enabled"`
	TelegramToken string `yaml:"telegram_token"`

	HistoryEnabled bool          `yaml:"history_enabled"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxImageBytes  int64         `yaml:"max_image_bytes"`
	MaxImageSide   int           `yaml:"max_image_side"`

	InferenceBackend     string        `yaml:"inference_backend"`
	InferenceTimeout     time.Duration `yaml:"inference_timeout"`
	InferenceConcurrency int           `yaml:"inference_concurrency"`
	BLIPURL              string        `yaml:"blip_url"`
	BLIPToken            string        `yaml:"blip_token"`
	BLIPRetries          int           `yaml:"blip_retries"`
	GeminiAPIKey         string        `yaml:"gemini_api_key"`
	GeminiModel          string        `yaml:"gemini_model"`

	CacheDBPath string `yaml:"cache_db_path"`
	LogLevel    string `yaml:"log_level"`
}

// Default значения по умолчанию
func Default() *Config {
	return &Config{
		HTTPAddr:             ":8080",
		WebEnabled:           true,
		HistoryEnabled:       true,
		SessionTTL:           30 * time.Minute,
		MaxImageBytes:        10 * 1024 * 1024,
		MaxImageSide:         768,
		InferenceBackend:     "blip",
		InferenceTimeout:     60 * time.Second,
		InferenceConcurrency: 1,
		BLIPRetries:          2,
		LogLevel:             "info",
	}
}

// Load собирает конфиг: значения по умолчанию, затем YAML из CONFIG_FILE, затем переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error

	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.InferenceBackend, "INFERENCE_BACKEND")
	setString(&c.BLIPURL, "BLIP_URL")
	setString(&c.BLIPToken, "BLIP_TOKEN")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.CacheDBPath, "CACHE_DB_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")

	errs = append(errs,
		setBool(&c.WebEnabled, "WEB_ENABLED"),
		setBool(&c.HistoryEnabled, "HISTORY_ENABLED"),
		setDuration(&c.SessionTTL, "SESSION_TTL"),
		setDuration(&c.InferenceTimeout, "INFERENCE_TIMEOUT"),
		setInt(&c.InferenceConcurrency, "INFERENCE_CONCURRENCY"),
		setInt(&c.MaxImageSide, "MAX_IMAGE_SIDE"),
		setInt(&c.BLIPRetries, "BLIP_RETRIES"),
		setInt64(&c.MaxImageBytes, "MAX_IMAGE_BYTES"),
	)

	return errors.Join(errs...)
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if !c.WebEnabled && c.TelegramToken == "" {
		errs = append(errs, errors.New("nothing to run: web is disabled and TELEGRAM_TOKEN is empty"))
	}
	if c.WebEnabled && c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required when web is enabled"))
	}

	switch c.InferenceBackend {
	case "blip":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("INFERENCE_BACKEND must be blip or gemini, got %q", c.InferenceBackend))
	}

	if c.InferenceTimeout <= 0 {
		errs = append(errs, errors.New("INFERENCE_TIMEOUT must be positive"))
	}
	if c.InferenceConcurrency < 1 {
		errs = append(errs, errors.New("INFERENCE_CONCURRENCY must be at least 1"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
