package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Empty(t, cfg.Aliyun.AccessKeyID)
	assert.Equal(t, "https://nls-filetrans.cn-shanghai.aliyuncs.com", cfg.Aliyun.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Aliyun.PollInterval)
	assert.Equal(t, 60, cfg.Aliyun.MaxPollAttempts)

	assert.Equal(t, "qwen-audio-turbo", cfg.Model.Model)
	assert.Equal(t, 120, cfg.Model.Timeout)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Server.CacheTTL)
	assert.Equal(t, "zh-CN", cfg.Server.DefaultLanguage.String())
	assert.Equal(t, 2, cfg.Server.JobWorkers)
}

func TestNewFromEnvOverrides(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "test-key")
	t.Setenv("ALIYUN_ACCESS_KEY_ID", "ak-id")
	t.Setenv("ALIYUN_ACCESS_KEY_SECRET", "ak-secret")
	t.Setenv("ALIYUN_NLS_APP_KEY", "app-key")
	t.Setenv("ALIYUN_POLL_INTERVAL", "1")
	t.Setenv("ALIYUN_POLL_MAX_ATTEMPTS", "10")
	t.Setenv("CACHE_TTL_MINUTES", "30")
	t.Setenv("DEFAULT_LANGUAGE", "en")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ak-id", cfg.Aliyun.AccessKeyID)
	assert.Equal(t, time.Second, cfg.Aliyun.PollInterval)
	assert.Equal(t, 10, cfg.Aliyun.MaxPollAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Server.CacheTTL)
	assert.Equal(t, "en", cfg.Server.DefaultLanguage.String())
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestNewFromEnvRequiresModelKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DASHSCOPE_API_KEY")
}

func TestNewFromEnvInvalidIntFallsBack(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "test-key")
	t.Setenv("ALIYUN_POLL_MAX_ATTEMPTS", "not-a-number")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Aliyun.MaxPollAttempts)
}

func TestNewFromEnvOptions(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "test-key")

	cfg, err := NewFromEnv(func(c *Config) {
		c.Server.JobWorkers = 8
	})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Server.JobWorkers)
}
