// Package config loads sentient settings from flags, environment and an optional YAML file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/sentient/pkg/inference/toolloop"
	"github.com/go-go-golems/sentient/pkg/inference/tools"
)

const (
	AppName   = "sentient"
	EnvPrefix = "SENTIENT"
)

// Config stores all configuration of the application.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Ntfy   NtfyConfig   `mapstructure:"ntfy"`
	Loop   LoopConfig   `mapstructure:"loop"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	State  StateConfig  `mapstructure:"state"`
	Agent  AgentConfig  `mapstructure:"agent"`
	Server ServerConfig `mapstructure:"server"`
}

type EngineConfig struct {
	Provider string `mapstructure:"provider"` // "gemini" or "scripted"
	Script   string `mapstructure:"script"`   // YAML script for the scripted engine
}

type GeminiConfig struct {
	APIKey        string `mapstructure:"api-key"`
	Model         string `mapstructure:"model"`
	BaseURL       string `mapstructure:"base-url"`
	AllowInsecure bool   `mapstructure:"allow-insecure"`
	// Temperature is left to the model when unset.
	Temperature     *float32 `mapstructure:"temperature"`
	MaxOutputTokens int32    `mapstructure:"max-output-tokens"` // 0 leaves the model default
}

type NtfyConfig struct {
	BaseURL       string `mapstructure:"base-url"`
	Topic         string `mapstructure:"topic"`
	Title         string `mapstructure:"title"`
	AllowInsecure bool   `mapstructure:"allow-insecure"`
}

type LoopConfig struct {
	MaxIterations int    `mapstructure:"max-iterations"`
	Mode          string `mapstructure:"mode"`
}

type ToolsConfig struct {
	UnknownPolicy     string        `mapstructure:"unknown-policy"`
	OnError           string        `mapstructure:"on-error"`
	ValidateArguments bool          `mapstructure:"validate-arguments"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Forward           []string      `mapstructure:"forward"`
	// Allowed restricts the offered tools to these glob patterns. Empty allows all.
	Allowed []string `mapstructure:"allowed"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "file", "sqlite" or "memory"
	Path    string `mapstructure:"path"`
	Agent   string `mapstructure:"agent"`
}

type AgentConfig struct {
	Steps    int           `mapstructure:"steps"`
	Interval time.Duration `mapstructure:"interval"`
	// PromptTemplate is a text/template (with sprig functions) rendered against the state.
	PromptTemplate string `mapstructure:"prompt-template"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.provider", "gemini")
	v.SetDefault("engine.script", "")

	v.SetDefault("gemini.api-key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base-url", "")
	v.SetDefault("gemini.allow-insecure", false)
	v.SetDefault("gemini.max-output-tokens", 0)

	v.SetDefault("ntfy.base-url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "")
	v.SetDefault("ntfy.title", "Sentient-AI")
	v.SetDefault("ntfy.allow-insecure", false)

	v.SetDefault("loop.max-iterations", 5)
	v.SetDefault("loop.mode", string(toolloop.ModeFeedback))

	v.SetDefault("tools.unknown-policy", string(tools.UnknownToolIgnore))
	v.SetDefault("tools.on-error", string(tools.ToolErrorContinue))
	v.SetDefault("tools.validate-arguments", false)
	v.SetDefault("tools.timeout", "30s")
	v.SetDefault("tools.forward", []string{})
	v.SetDefault("tools.allowed", []string{})

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", "state.json")
	v.SetDefault("state.agent", "default")

	v.SetDefault("agent.steps", 10)
	v.SetDefault("agent.interval", "5s")
	v.SetDefault("agent.prompt-template", "")

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.shutdown-timeout", "10s")
}

// Load reads the configuration into a Config. configPath may be empty, in which
// case sentient.yaml is looked up in the working directory and in the user config dir.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// unprefixed names are accepted as well
	if err := v.BindEnv("gemini.api-key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("ntfy.topic", EnvPrefix+"_NTFY_TOPIC", "NTFY_TOPIC"); err != nil {
		return nil, err
	}
	// no default, so that an unset temperature stays nil
	if err := v.BindEnv("gemini.temperature"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errors.Wrap(err, "unable to decode into struct")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and bounds. Missing credentials are not errors here;
// they are reported when the component that needs them is built.
func (c *Config) Validate() error {
	switch c.Engine.Provider {
	case "gemini", "scripted":
	default:
		return errors.Errorf("unknown engine %q (expected gemini or scripted)", c.Engine.Provider)
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.Errorf("gemini.temperature must be between 0 and 2, got %g", *t)
	}
	if c.Gemini.MaxOutputTokens < 0 {
		return errors.Errorf("gemini.max-output-tokens must not be negative, got %d", c.Gemini.MaxOutputTokens)
	}
	if _, err := c.LoopConfig(); err != nil {
		return err
	}
	if _, err := tools.ParseUnknownToolPolicy(c.Tools.UnknownPolicy); err != nil {
		return err
	}
	if _, err := tools.ParseToolErrorHandling(c.Tools.OnError); err != nil {
		return err
	}
	switch c.State.Backend {
	case "file", "sqlite", "memory":
	default:
		return errors.Errorf("unknown state backend %q (expected file, sqlite or memory)", c.State.Backend)
	}
	if c.Agent.Steps <= 0 {
		return errors.Errorf("agent.steps must be positive, got %d", c.Agent.Steps)
	}
	return nil
}

// LoopConfig returns the validated turn loop settings.
func (c *Config) LoopConfig() (toolloop.LoopConfig, error) {
	mode, err := toolloop.ParseMode(c.Loop.Mode)
	if err != nil {
		return toolloop.LoopConfig{}, err
	}
	lc := toolloop.DefaultLoopConfig().WithMaxIterations(c.Loop.MaxIterations).WithMode(mode)
	if err := lc.Validate(); err != nil {
		return toolloop.LoopConfig{}, err
	}
	return lc, nil
}

// ToolConfig returns executor settings.
func (c *Config) ToolConfig() tools.ToolConfig {
	policy, _ := tools.ParseUnknownToolPolicy(c.Tools.UnknownPolicy)
	onError, _ := tools.ParseToolErrorHandling(c.Tools.OnError)
	tc := tools.DefaultToolConfig().
		WithUnknownToolPolicy(policy).
		WithToolErrorHandling(onError).
		WithValidateArguments(c.Tools.ValidateArguments).
		WithExecutionTimeout(c.Tools.Timeout)
	if len(c.Tools.Allowed) > 0 {
		tc = tc.WithAllowedTools(c.Tools.Allowed)
	}
	return tc
}
