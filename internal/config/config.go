package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/janekbaraniewski/ccost/internal/core"
)

const (
	DefaultPricingURL          = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"
	DefaultFetchTimeoutSeconds = 10
)

type PricingConfig struct {
	// Live fetches the pricing dataset instead of using the embedded snapshot.
	Live                bool   `json:"live"`
	URL                 string `json:"url"`
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	// FallbackOffline uses the embedded snapshot when a live fetch fails.
	FallbackOffline bool `json:"fallback_offline"`
}

// Config holds user defaults; command-line flags take precedence over it.
type Config struct {
	Mode            string        `json:"mode"`
	Order           string        `json:"order"`
	Timezone        string        `json:"timezone"`
	Workers         int           `json:"workers"`
	DisabledSources []string      `json:"disabled_sources"`
	Pricing         PricingConfig `json:"pricing"`
}

func DefaultConfig() Config {
	return Config{
		Mode:    string(core.CostModeAuto),
		Order:   string(core.OrderAsc),
		Workers: runtime.NumCPU(),
		Pricing: PricingConfig{
			URL:                 DefaultPricingURL,
			FetchTimeoutSeconds: DefaultFetchTimeoutSeconds,
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "ccost")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccost")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, &core.ConfigError{Setting: "settings file", Value: path, Reason: "cannot read", Err: err}
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), &core.ConfigError{Setting: "settings file", Value: path, Reason: "cannot parse", Err: err}
	}

	if strings.TrimSpace(cfg.Mode) == "" {
		cfg.Mode = string(core.CostModeAuto)
	}
	if strings.TrimSpace(cfg.Order) == "" {
		cfg.Order = string(core.OrderAsc)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.Pricing.URL) == "" {
		cfg.Pricing.URL = DefaultPricingURL
	}
	if cfg.Pricing.FetchTimeoutSeconds <= 0 {
		cfg.Pricing.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}

	return cfg, nil
}

// Validate checks the fields that are later parsed into typed options so a bad
// settings file is reported before any log is read.
func (c Config) Validate() error {
	if _, err := core.ParseCostMode(c.Mode); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if _, err := core.ParseSortOrder(c.Order); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	for _, name := range c.DisabledSources {
		if _, err := core.ParseSourceKind(name); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	return nil
}
