package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
// Aliyun provider (all three credentials required for the provider to be available):
// - ALIYUN_ACCESS_KEY_ID: access key id
// - ALIYUN_ACCESS_KEY_SECRET: access key secret
// - ALIYUN_NLS_APP_KEY: NLS application key
// - ALIYUN_FILETRANS_URL: file transcription endpoint (default: https://nls-filetrans.cn-shanghai.aliyuncs.com)
// - ALIYUN_POLL_INTERVAL: seconds between status polls (default: 5)
// - ALIYUN_POLL_MAX_ATTEMPTS: poll attempt budget (default: 60)
//
// AI model fallback:
// - DASHSCOPE_API_KEY: API key for the multimodal model (required)
// - DASHSCOPE_API_URL: generation endpoint (default: DashScope multimodal generation)
// - DASHSCOPE_MODEL: model name (default: qwen-audio-turbo)
// - DASHSCOPE_TIMEOUT: request timeout in seconds (default: 120)
//
// Service:
// - HTTP_ADDR: listen address (default: :8080)
// - DB_PATH: sqlite database path (default: data/transcription.db)
// - CACHE_TTL_MINUTES: result cache TTL (default: 60)
// - CACHE_SWEEP_CRON: cron expression for the cache sweep (default: */10 * * * *)
// - SRT_EXPORT_DIR: directory for per-result .srt files; empty disables the export (default: empty)
// - DEFAULT_LANGUAGE: language hint for the video/audio conveniences (default: zh-CN)
// - JOB_WORKERS: transcription job workers (default: 2)
// - LOG_LEVEL: debug/info/warn/error (default: info)
type Config struct {
	Aliyun AliyunConfig `json:"aliyun"`
	Model  ModelConfig  `json:"model"`
	Server ServerConfig `json:"server"`
}

// AliyunConfig holds the primary provider settings.
type AliyunConfig struct {
	AccessKeyID     string        `json:"access_key_id"`
	AccessKeySecret string        `json:"access_key_secret"`
	AppKey          string        `json:"app_key"`
	BaseURL         string        `json:"base_url"`
	PollInterval    time.Duration `json:"poll_interval"`
	MaxPollAttempts int           `json:"max_poll_attempts"`
}

// ModelConfig holds the fallback provider settings.
type ModelConfig struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// ServerConfig holds HTTP, cache and job settings.
type ServerConfig struct {
	Addr            string        `json:"addr"`
	DBPath          string        `json:"db_path"`
	CacheTTL        time.Duration `json:"cache_ttl"`
	CacheSweepCron  string        `json:"cache_sweep_cron"`
	SRTExportDir    string        `json:"srt_export_dir"`
	DefaultLanguage language.Tag  `json:"default_language"`
	JobWorkers      int           `json:"job_workers"`
	LogLevel        string        `json:"log_level"`
}

// Option is a function type for configuring Config.
type Option func(*Config)

// NewFromEnv creates a Config from environment variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Aliyun: AliyunConfig{
			AccessKeyID:     getEnvString("ALIYUN_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnvString("ALIYUN_ACCESS_KEY_SECRET", ""),
			AppKey:          getEnvString("ALIYUN_NLS_APP_KEY", ""),
			BaseURL:         getEnvString("ALIYUN_FILETRANS_URL", "https://nls-filetrans.cn-shanghai.aliyuncs.com"),
			PollInterval:    time.Duration(getEnvInt("ALIYUN_POLL_INTERVAL", 5)) * time.Second,
			MaxPollAttempts: getEnvInt("ALIYUN_POLL_MAX_ATTEMPTS", 60),
		},
		Model: ModelConfig{
			APIKey:  getEnvString("DASHSCOPE_API_KEY", ""),
			APIURL:  getEnvString("DASHSCOPE_API_URL", "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"),
			Model:   getEnvString("DASHSCOPE_MODEL", "qwen-audio-turbo"),
			Timeout: getEnvInt("DASHSCOPE_TIMEOUT", 120),
		},
		Server: ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			DBPath:          getEnvString("DB_PATH", "data/transcription.db"),
			CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_MINUTES", 60)) * time.Minute,
			CacheSweepCron:  getEnvString("CACHE_SWEEP_CRON", "*/10 * * * *"),
			SRTExportDir:    getEnvString("SRT_EXPORT_DIR", ""),
			DefaultLanguage: language.Make(getEnvString("DEFAULT_LANGUAGE", "zh-CN")),
			JobWorkers:      getEnvInt("JOB_WORKERS", 2),
			LogLevel:        getEnvString("LOG_LEVEL", "info"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks required configuration. Missing Aliyun credentials are
// fine: the primary provider just reports itself unavailable and the
// fallback carries the traffic.
func (c *Config) validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("DASHSCOPE_API_KEY is required")
	}
	if c.Server.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_MINUTES must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
