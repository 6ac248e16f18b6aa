package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/plenum-ai/plenum"
)

// loadConfig builds the service configuration from the package defaults, an
// optional YAML file and environment variable overrides, in that order.
func loadConfig(path string) (*plenum.Config, error) {
	cfg := plenum.DefaultConfig()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "yaml"
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling config %s: %w", path, err)
		}
	}

	if value, ok := os.LookupEnv("TRUE_STREAMING"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("TRUE_STREAMING: %w", err)
		}
		cfg.Server.Streaming.Enabled = enabled
	}
	if addr := os.Getenv("PLENUM_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if value := os.Getenv("PLENUM_WORKERS"); value != "" {
		workers, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("PLENUM_WORKERS: %w", err)
		}
		cfg.Runner.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
