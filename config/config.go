package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/taxledger/risk"
	"github.com/rustyeddy/taxledger/tax"
)

// Config is the complete run configuration.
type Config struct {
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Account     AccountConfig     `json:"account" yaml:"account"`
	Risk        RiskConfig        `json:"risk" yaml:"risk"`
	Instruments map[string]string `json:"instruments" yaml:"instruments"` // symbol -> tax category
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// DatabaseConfig locates the SQLite file shared by the ledger, the
// loss-lot registry and the peak tracker.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// AccountConfig identifies the account under management.
type AccountConfig struct {
	ID       string `json:"id" yaml:"id"`
	Currency string `json:"currency" yaml:"currency"`
}

// RiskConfig carries the stop thresholds as fractions.
type RiskConfig struct {
	HardStopPct         float64 `json:"hard_stop_pct" yaml:"hard_stop_pct"`
	TrailingActivatePct float64 `json:"trailing_activate_pct" yaml:"trailing_activate_pct"`
	TrailingStopPct     float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
}

// Policy converts the config thresholds into a risk.Policy.
func (r RiskConfig) Policy() risk.Policy {
	return risk.Policy{
		HardStopPct:         r.HardStopPct,
		TrailingActivatePct: r.TrailingActivatePct,
		TrailingStopPct:     r.TrailingStopPct,
	}
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// LoadFromFile loads configuration from a file, trying YAML first and
// falling back to JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration out, YAML for .yaml/.yml paths
// and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if err := c.Risk.Policy().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	for symbol, cat := range c.Instruments {
		switch tax.Category(cat) {
		case tax.CategoryShare, tax.CategoryETC, tax.CategoryETF, tax.CategoryFund:
		default:
			return fmt.Errorf("instruments.%s: unknown tax category %q", symbol, cat)
		}
	}
	return nil
}

// Registry builds the instrument registry from the configured map.
func (c *Config) Registry() tax.StaticRegistry {
	reg := make(tax.StaticRegistry, len(c.Instruments))
	for symbol, cat := range c.Instruments {
		reg[symbol] = tax.Category(cat)
	}
	return reg
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	p := risk.DefaultPolicy()
	return &Config{
		Database: DatabaseConfig{Path: "./taxledger.db"},
		Account:  AccountConfig{ID: "ACC-001", Currency: "EUR"},
		Risk: RiskConfig{
			HardStopPct:         p.HardStopPct,
			TrailingActivatePct: p.TrailingActivatePct,
			TrailingStopPct:     p.TrailingStopPct,
		},
		Instruments: map[string]string{},
		Logging:     LoggingConfig{Level: "info"},
	}
}
