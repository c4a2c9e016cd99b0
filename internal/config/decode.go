package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	Manifest  string
	Contracts []string
	In        string
	Out       string
	Errors    string
	Network   string
	LogLevel  string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("manifest", "./manifest.yaml")
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		Manifest:  v.GetString("manifest"),
		Contracts: getStringSlice(v, "contracts"),
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		Network:   v.GetString("network"),
		LogLevel:  v.GetString("log-level"),
	}

	if cfg.Manifest == "" {
		return DecodeConfig{}, fmt.Errorf("manifest is required")
	}
	if cfg.In == "" {
		return DecodeConfig{}, fmt.Errorf("input path is required")
	}
	if cfg.Network == "" {
		return DecodeConfig{}, fmt.Errorf("network is required")
	}
	return cfg, nil
}
