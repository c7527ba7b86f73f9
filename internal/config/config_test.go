package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jgivc/mfdl/internal/entity"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")

	content := `dest_base: ` + dir + `
retries: 3
max_jobs: 4
timeout: 15s
noconfirm: true
download_mode: touch
headers:
  Referer: https://www.mediafire.com/
filters:
  - name: '.*\.tmp'
  - min_size: 1024
    max_size: 2048
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, dir, cfg.DestBase)
	require.Equal(t, 3, cfg.Retries)
	require.Equal(t, 4, cfg.MaxJobs)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.True(t, cfg.NoConfirm)
	require.Equal(t, entity.DownloadModeTouch, cfg.DownloadMode)
	require.Equal(t, "https://www.mediafire.com/", cfg.Headers["Referer"])
	require.Len(t, cfg.Filters, 2)
	require.Equal(t, int64(2048), cfg.Filters[1].MaxSize)

	require.Equal(t, defaultRequestDelay, cfg.RequestDelay)
	require.Equal(t, defaultRetryDelayMin, cfg.RetryDelayMin)
	require.Equal(t, defaultRetryDelayMax, cfg.RetryDelayMax)
	require.Equal(t, LogLevelInfo, cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	require.Equal(t, defaultRetries, cfg.Retries)
	require.Equal(t, entity.DownloadModeFull, cfg.DownloadMode)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvRetries, "7")
	t.Setenv(EnvProxy, "socks5://127.0.0.1:9050")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Retries)
	require.Equal(t, "socks5://127.0.0.1:9050", cfg.Proxy)

	t.Setenv(EnvRetries, "seven")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{name: "defaults", modify: func(c *Config) {}, valid: true},
		{name: "bad mode", modify: func(c *Config) { c.DownloadMode = "partial" }},
		{name: "negative retries", modify: func(c *Config) { c.Retries = -1 }},
		{name: "no retries", modify: func(c *Config) { c.Retries = 0 }, valid: true},
		{name: "negative request delay", modify: func(c *Config) { c.RequestDelay = -time.Millisecond }},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }},
		{name: "bad window", modify: func(c *Config) { c.RetryDelayMin = 2 * time.Second; c.RetryDelayMax = time.Second }},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "trace" }},
		{name: "missing dest", modify: func(c *Config) { c.DestBase = filepath.Join(dir, "nope") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{DestBase: dir}
			cfg.SetDefaults()
			tc.modify(cfg)

			if tc.valid {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}

func TestLoadZeroRetries(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("retries: 0\n"), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Zero(t, cfg.Retries)

	t.Setenv(EnvRetries, "0")
	cfg, err = Load("")
	require.NoError(t, err)
	require.Zero(t, cfg.Retries)

	cfg, err = Load(filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	require.Zero(t, cfg.Retries)
}
