// Package config loads meridian-agent settings from defaults, YAML files,
// .env files and MERIDIAN_* environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	llmprovider "github.com/haowjy/meridian-agent-go"
	"github.com/haowjy/meridian-agent-go/agent"
)

const appName = "meridian-agent"

// Config holds all configuration values for meridian-agent.
type Config struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Feature           string        `mapstructure:"feature" yaml:"feature"`
	ProfilesFile      string        `mapstructure:"profiles_file" yaml:"profiles_file,omitempty"`
	MaxRounds         int           `mapstructure:"max_rounds" yaml:"max_rounds"`
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout" yaml:"stream_idle_timeout"`
	ParallelTools     bool          `mapstructure:"parallel_tools" yaml:"parallel_tools"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	ThinkingLevel     string        `mapstructure:"thinking_level" yaml:"thinking_level,omitempty"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format,omitempty"`
	AnthropicAPIKey   string        `mapstructure:"anthropic_api_key" yaml:"-"`

	Lorem   LoremConfig   `mapstructure:"lorem" yaml:"lorem"`
	NATS    NATSConfig    `mapstructure:"nats" yaml:"nats"`
	Preview PreviewConfig `mapstructure:"preview" yaml:"preview"`
}

// LoremConfig shapes the offline provider's conversations.
type LoremConfig struct {
	ToolRounds        int `mapstructure:"tool_rounds" yaml:"tool_rounds"`
	ToolCallsPerRound int `mapstructure:"tool_calls_per_round" yaml:"tool_calls_per_round"`
}

// NATSConfig selects where exchange events are published. An empty URL with
// Embedded set runs an in-process server.
type NATSConfig struct {
	URL      string `mapstructure:"url" yaml:"url,omitempty"`
	Embedded bool   `mapstructure:"embedded" yaml:"embedded"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	StoreDir string `mapstructure:"store_dir" yaml:"store_dir,omitempty"`
}

// PreviewConfig configures the builder preview server.
type PreviewConfig struct {
	Command   []string      `mapstructure:"command" yaml:"command,omitempty"`
	Dir       string        `mapstructure:"dir" yaml:"dir,omitempty"`
	URL       string        `mapstructure:"url" yaml:"url,omitempty"`
	StopGrace time.Duration `mapstructure:"stop_grace" yaml:"stop_grace"`
}

var envKeys = []string{
	"provider", "model", "feature", "profiles_file", "max_rounds",
	"stream_idle_timeout", "parallel_tools", "max_tokens", "thinking_level",
	"log_level", "log_format",
	"lorem.tool_rounds", "lorem.tool_calls_per_round",
	"nats.url", "nats.embedded", "nats.prefix", "nats.store_dir",
	"preview.command", "preview.dir", "preview.url", "preview.stop_grace",
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Provider:          string(llmprovider.ProviderLorem),
		Model:             "lorem-fast",
		Feature:           "graph",
		MaxRounds:         agent.DefaultMaxRounds,
		StreamIdleTimeout: agent.DefaultStreamIdleTimeout,
		ParallelTools:     true,
		MaxTokens:         4096,
		LogLevel:          "info",
		Lorem:             LoremConfig{ToolRounds: 1, ToolCallsPerRound: 1},
		NATS:              NATSConfig{Prefix: "meridian"},
		Preview:           PreviewConfig{StopGrace: 5 * time.Second},
	}
}

// Load loads configuration with full precedence:
// ENV vars > project config > global config > defaults. CLI flags are
// applied by the caller on the returned value.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(appName)

	d := Defaults()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("feature", d.Feature)
	v.SetDefault("profiles_file", "")
	v.SetDefault("max_rounds", d.MaxRounds)
	v.SetDefault("stream_idle_timeout", d.StreamIdleTimeout)
	v.SetDefault("parallel_tools", d.ParallelTools)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("thinking_level", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", "")
	v.SetDefault("lorem.tool_rounds", d.Lorem.ToolRounds)
	v.SetDefault("lorem.tool_calls_per_round", d.Lorem.ToolCallsPerRound)
	v.SetDefault("nats.embedded", false)
	v.SetDefault("nats.prefix", d.NATS.Prefix)
	v.SetDefault("preview.stop_grace", d.Preview.StopGrace)

	v.SetEnvPrefix("MERIDIAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		env := "MERIDIAN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}
	if err := v.BindEnv("anthropic_api_key", "MERIDIAN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding anthropic_api_key env: %w", err)
	}

	if globalPath := GlobalPath(); fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}
	if projectPath := ProjectPath(); fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks values the engine cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	if _, err := llmprovider.ParseProviderID(c.Provider); err != nil {
		errs = append(errs, err)
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds))
	}
	if c.StreamIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stream_idle_timeout must be positive, got %s", c.StreamIdleTimeout))
	}
	switch c.ThinkingLevel {
	case "", llmprovider.ThinkingLevelLow, llmprovider.ThinkingLevelMedium, llmprovider.ThinkingLevelHigh:
	default:
		errs = append(errs, fmt.Errorf("thinking_level must be low, medium or high, got %q", c.ThinkingLevel))
	}
	switch c.LogFormat {
	case "", "json", "terminal":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or terminal, got %q", c.LogFormat))
	}
	if c.Provider == string(llmprovider.ProviderAnthropic) && c.AnthropicAPIKey == "" {
		errs = append(errs, fmt.Errorf("anthropic provider needs ANTHROPIC_API_KEY: %w", llmprovider.ErrInvalidAPIKey))
	}
	return errors.Join(errs...)
}

// AgentOptions converts the configuration to engine options.
func (c *Config) AgentOptions() agent.Options {
	opts := agent.DefaultOptions()
	opts.Model = c.Model
	if c.MaxRounds > 0 {
		opts.MaxRounds = c.MaxRounds
	}
	if c.StreamIdleTimeout > 0 {
		opts.StreamIdleTimeout = c.StreamIdleTimeout
	}
	opts.ParallelTools = c.ParallelTools

	params := &llmprovider.RequestParams{}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		params.MaxTokens = &maxTokens
	}
	if c.ThinkingLevel != "" {
		level := c.ThinkingLevel
		params.ThinkingLevel = &level
	}
	opts.Params = params
	return opts
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns $XDG_CONFIG_HOME/meridian-agent/meridian-agent.yml, or
// the same under ~/.config.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, appName+".yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, appName+".yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return appName + ".yml"
}

// WriteGlobal writes the config to the global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
