package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/meridian-agent-go/agent"
)

// isolate points the global config at a temp dir and runs the test from
// another temp dir, so neither real config file is read.
func isolate(t *testing.T) (globalDir, projectDir string) {
	t.Helper()
	globalDir = t.TempDir()
	projectDir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", globalDir)
	t.Chdir(projectDir)
	for _, key := range envKeys {
		t.Setenv("MERIDIAN_"+upper(key), "")
		os.Unsetenv("MERIDIAN_" + upper(key))
	}
	t.Setenv("ANTHROPIC_API_KEY", "")
	os.Unsetenv("ANTHROPIC_API_KEY")
	return globalDir, projectDir
}

func upper(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func TestGlobalPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/meridian-agent/meridian-agent.yml", GlobalPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	got := GlobalPath()
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "meridian-agent.yml", filepath.Base(got))
	assert.Equal(t, "meridian-agent.yml", ProjectPath())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	assert.False(t, Exists())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	globalDir, _ := isolate(t)

	global := Defaults()
	global.Model = "lorem-slow"
	global.MaxRounds = 50
	global.NATS.Embedded = true
	require.NoError(t, WriteGlobal(global))
	assert.FileExists(t, filepath.Join(globalDir, "meridian-agent", "meridian-agent.yml"))

	require.NoError(t, os.WriteFile(ProjectPath(), []byte("max_rounds: 7\nstream_idle_timeout: 30s\n"), 0o644))
	assert.True(t, Exists())

	t.Setenv("MERIDIAN_FEATURE", "voice")
	t.Setenv("MERIDIAN_PARALLEL_TOOLS", "false")
	t.Setenv("MERIDIAN_NATS_PREFIX", "ui")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "lorem-slow", cfg.Model, "global file")
	assert.Equal(t, 7, cfg.MaxRounds, "project file beats global")
	assert.Equal(t, 30*time.Second, cfg.StreamIdleTimeout)
	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, "voice", cfg.Feature, "env beats files")
	assert.False(t, cfg.ParallelTools)
	assert.Equal(t, "ui", cfg.NATS.Prefix)
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
}

func TestWriteProject_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Preview = PreviewConfig{Command: []string{"npm", "run", "dev"}, URL: "http://localhost:5173", StopGrace: 3 * time.Second}
	cfg.AnthropicAPIKey = "never-written"
	require.NoError(t, WriteProject(cfg))

	data, err := os.ReadFile(ProjectPath())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"npm", "run", "dev"}, got.Preview.Command)
	assert.Equal(t, 3*time.Second, got.Preview.StopGrace)
}

func TestLoadEnv(t *testing.T) {
	_, dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MERIDIAN_MODEL=lorem-chat\n"), 0o644))
	t.Setenv("MERIDIAN_MODEL", "")
	os.Unsetenv("MERIDIAN_MODEL")

	require.NoError(t, LoadEnv())
	require.NoError(t, LoadEnv("missing.env"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "lorem-chat", cfg.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown provider", func(c *Config) { c.Provider = "openai" }, false},
		{"no model", func(c *Config) { c.Model = "" }, false},
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, false},
		{"bad thinking", func(c *Config) { c.ThinkingLevel = "extreme" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"anthropic without key", func(c *Config) { c.Provider = "anthropic" }, false},
		{"anthropic with key", func(c *Config) { c.Provider = "anthropic"; c.AnthropicAPIKey = "k" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAgentOptions(t *testing.T) {
	cfg := Defaults()
	cfg.ThinkingLevel = "low"
	cfg.ParallelTools = false
	opts := cfg.AgentOptions()

	assert.Equal(t, "lorem-fast", opts.Model)
	assert.Equal(t, agent.DefaultMaxRounds, opts.MaxRounds)
	assert.False(t, opts.ParallelTools)
	require.NotNil(t, opts.Params)
	assert.Equal(t, 4096, *opts.Params.MaxTokens)
	assert.True(t, opts.Params.IsThinkingEnabled())
}
