// Package config loads the vowguard configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/vowguard/internal/compose"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/logging"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// EnvPrefix prefixes every environment override, e.g. VOWGUARD_SERVER_ADDR.
const EnvPrefix = "VOWGUARD"

// Provider kinds.
const (
	ProviderOpenAI = "openai"
	ProviderGRPC   = "grpc"
)

// #region types
// Config is the full process configuration.
type Config struct {
	Log       logging.Config         `mapstructure:"log"`
	Server    ServerConfig           `mapstructure:"server"`
	Storage   StorageConfig          `mapstructure:"storage"`
	Data      DataConfig             `mapstructure:"data"`
	Provider  ProviderConfig         `mapstructure:"provider"`
	Matcher   vow.MatcherConfig      `mapstructure:"matcher"`
	Scorer    integrity.ScorerConfig `mapstructure:"scorer"`
	Tuner     reflection.TunerConfig `mapstructure:"tuner"`
	Composer  compose.ComposerConfig `mapstructure:"composer"`
	Sincerity map[string]float64     `mapstructure:"sincerity"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig locates the sqlite ledger.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// DataConfig locates persona and rule files.
type DataConfig struct {
	PersonasPath string `mapstructure:"personas_path"`
	RulesPath    string `mapstructure:"rules_path"`
}

// ProviderConfig selects and configures the embedding/generation backend.
type ProviderConfig struct {
	Kind       string                    `mapstructure:"kind"` // openai | grpc
	GRPCAddr   string                    `mapstructure:"grpc_addr"`
	OpenAI     provider.OpenAIConfig     `mapstructure:"openai"`
	Resilience provider.ResilienceConfig `mapstructure:"resilience"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:     logging.DefaultConfig(),
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{DBPath: "vowguard.db"},
		Data: DataConfig{
			PersonasPath: "configs/personas.yaml",
			RulesPath:    "configs/vows.yaml",
		},
		Provider: ProviderConfig{
			Kind:       ProviderOpenAI,
			GRPCAddr:   "localhost:50051",
			OpenAI:     provider.DefaultOpenAIConfig(),
			Resilience: provider.DefaultResilienceConfig(),
		},
		Matcher:  vow.DefaultMatcherConfig(),
		Scorer:   integrity.DefaultScorerConfig(),
		Tuner:    reflection.DefaultTunerConfig(),
		Composer: compose.DefaultComposerConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("data.personas_path", d.Data.PersonasPath)
	v.SetDefault("data.rules_path", d.Data.RulesPath)

	v.SetDefault("provider.kind", d.Provider.Kind)
	v.SetDefault("provider.grpc_addr", d.Provider.GRPCAddr)
	v.SetDefault("provider.openai.api_key", "")
	v.SetDefault("provider.openai.base_url", "")
	v.SetDefault("provider.openai.embedding_model", d.Provider.OpenAI.EmbeddingModel)
	v.SetDefault("provider.openai.chat_model", d.Provider.OpenAI.ChatModel)
	v.SetDefault("provider.openai.system_prompt", d.Provider.OpenAI.SystemPrompt)
	v.SetDefault("provider.openai.temperature", d.Provider.OpenAI.Temperature)
	v.SetDefault("provider.resilience.timeout", d.Provider.Resilience.Timeout)
	v.SetDefault("provider.resilience.max_retries", d.Provider.Resilience.MaxRetries)
	v.SetDefault("provider.resilience.retry_delay", d.Provider.Resilience.RetryDelay)
	v.SetDefault("provider.resilience.rate_per_sec", d.Provider.Resilience.RatePerSec)
	v.SetDefault("provider.resilience.burst", d.Provider.Resilience.Burst)

	v.SetDefault("matcher.init_concurrency", d.Matcher.InitConcurrency)

	v.SetDefault("scorer.direction_deviation", d.Scorer.DirectionDeviation)
	v.SetDefault("scorer.tension_deviation", d.Scorer.TensionDeviation)
	v.SetDefault("scorer.honest_below", d.Scorer.HonestBelow)

	v.SetDefault("tuner.honest_reflection_vow", d.Tuner.HonestReflectionVowID)
	v.SetDefault("tuner.honesty_bound", d.Tuner.HonestyBound)
	v.SetDefault("tuner.max_depth", d.Tuner.MaxDepth)
	v.SetDefault("tuner.direction_deviation", d.Tuner.DirectionDeviation)
	v.SetDefault("tuner.tension_deviation", d.Tuner.TensionDeviation)
	v.SetDefault("tuner.correction_bound", d.Tuner.CorrectionBound)
	v.SetDefault("tuner.strong_correction_bound", d.Tuner.StrongCorrectionBound)

	v.SetDefault("composer.contradiction_threshold", d.Composer.ContradictionThreshold)
	v.SetDefault("composer.collapse_threshold", d.Composer.CollapseThreshold)
	v.SetDefault("composer.declaration", d.Composer.Declaration)
}

// #endregion defaults

// #region load
// Load reads path (optional) over the defaults, then applies VOWGUARD_*
// environment overrides. An empty path searches ./vowguard.yaml and
// ./configs/vowguard.yaml; a missing file is not an error in that case.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// OPENAI_API_KEY is honoured the way the OpenAI tooling expects.
	_ = v.BindEnv("provider.openai.api_key", EnvPrefix+"_PROVIDER_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vowguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// #endregion load

// #region validate
// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderOpenAI, ProviderGRPC:
	default:
		return fmt.Errorf("invalid provider kind %q (must be %s or %s)", c.Provider.Kind, ProviderOpenAI, ProviderGRPC)
	}
	if c.Provider.Kind == ProviderGRPC && c.Provider.GRPCAddr == "" {
		return fmt.Errorf("provider.grpc_addr is required for the grpc provider")
	}
	if c.Provider.Resilience.Timeout <= 0 {
		return fmt.Errorf("provider.resilience.timeout must be positive")
	}
	if c.Provider.Resilience.MaxRetries < 0 {
		return fmt.Errorf("provider.resilience.max_retries must not be negative")
	}
	for name, v := range map[string]float64{
		"scorer.honest_below":              c.Scorer.HonestBelow,
		"tuner.honesty_bound":              c.Tuner.HonestyBound,
		"composer.contradiction_threshold": c.Composer.ContradictionThreshold,
		"composer.collapse_threshold":      c.Composer.CollapseThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s is %.4f, outside [0,1]", name, v)
		}
	}
	for d, v := range c.Sincerity {
		if v < 0 || v > 1 {
			return fmt.Errorf("sincerity for %q is %.4f, outside [0,1]", d, v)
		}
	}
	return nil
}

// SincerityTable returns the configured overrides as a tone table.
func (c Config) SincerityTable() tone.SincerityTable {
	if len(c.Sincerity) == 0 {
		return nil
	}
	t := make(tone.SincerityTable, len(c.Sincerity))
	for d, v := range c.Sincerity {
		t[tone.Direction(d)] = v
	}
	return t
}

// #endregion validate
