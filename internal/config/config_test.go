package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	RegisterCrawlFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, []int{504}, cfg.RetryStatusCodes)
	assert.Equal(t, 0, cfg.RetryMaxAttempts)
	assert.Equal(t, 23*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []models.Category{models.CategoryUsed, models.CategoryNew}, cfg.ParsedCategories())
	assert.Equal(t, "https://autospot.ru", cfg.Headers["Origin"])
}

func TestLoad_FileWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autospot.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// comments and trailing commas are fine
		output: "cars.json",
		concurrency: 4,
		timeout: "10s",
		categories: ["new"],
		headers: {"X-Debug": "1"},
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "autospot.local.json5"), []byte(`{concurrency: 2, save_each: true}`), 0644))

	cfg, err := Load(newCmd(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "cars.json", cfg.Output)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.SaveEach)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []models.Category{models.CategoryNew}, cfg.ParsedCategories())
	assert.Equal(t, "1", cfg.Headers["X-Debug"])
	assert.Equal(t, "https://autospot.ru/", cfg.Headers["Referer"], "file headers merge over the defaults")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autospot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": "file.json", "max_pages": 3}`), 0644))

	t.Setenv("AUTOSPOT_OUTPUT", "env.json")
	t.Setenv("AUTOSPOT_MAX_PAGES", "5")

	cfg, err := Load(newCmd(t, "--config", path, "--max-pages", "7", "-H", "X-Test: yes", "--verbose"))
	require.NoError(t, err)

	assert.Equal(t, "env.json", cfg.Output)
	assert.Equal(t, 7, cfg.MaxPages)
	assert.Equal(t, "yes", cfg.Headers["X-Test"])
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"zero concurrency", []string{"--concurrency", "0"}, nil},
		{"too many workers", []string{"--concurrency", "100"}, nil},
		{"unknown category", []string{"--category", "vintage"}, nil},
		{"negative max pages", []string{"--max-pages", "-1"}, nil},
		{"bad env timeout", nil, map[string]string{"AUTOSPOT_TIMEOUT": "soon"}},
		{"bad listing url", nil, map[string]string{"AUTOSPOT_USED_URL": "ftp://autospot.ru/"}},
		{"missing config file", []string{"--config", "/nonexistent/autospot.json"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(newCmd(t, tt.args...))
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, crawlerr.ErrConfig))
		})
	}
}

func TestReadFile_OnlyLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cfg.local.json"), []byte(`{"proxy": "http://p:8080"}`), 0644))

	f, err := ReadFile(filepath.Join(dir, "cfg.json"))
	require.NoError(t, err)
	assert.Equal(t, "http://p:8080", f.Proxy)

	_, err = ReadFile(filepath.Join(dir, "other.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
