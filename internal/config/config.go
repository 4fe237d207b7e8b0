// Package config loads the config.yml file: provider profile, regions to
// scan and the global/per-region policy default layers. The top-level key
// names DefaultAWSRegion and DefaultAWSProfile are kept for compatibility
// with existing Shutter deployments.
package config

import (
	"fmt"
	"slices"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	DefaultAWSRegion  string `json:"defaultawsregion"`
	DefaultAWSProfile string `json:"defaultawsprofile"`

	// Parallelism bounds concurrent instance processing per pass.
	Parallelism int `json:"parallelism"`

	// Defaults is the global policy layer applied to every instance.
	Defaults policy.Defaults `json:"defaults"`

	// Regions maps each region to scan to its optional override layer.
	// An empty entry scans the region with global defaults only.
	Regions map[string]policy.Defaults `json:"regions"`

	Webhook WebhookConfig `json:"webhook"`
}

type WebhookConfig struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}

	var cfg Config
	err := v.Unmarshal(&cfg,
		viper.DecodeHook(policy.DecodeHook()),
		func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "json"
			dc.WeaklyTypedInput = true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parsing config file '%s': %w", path, err)
	}

	// Viper's settings tree drops empty sub-maps, so a region configured
	// with no overrides ("us-east-1: {}") is missing from cfg.Regions after
	// Unmarshal. Walk the raw keys and restore every such region with an
	// empty layer; losing it would silently exclude the region from passes.
	for name := range v.GetStringMap("regions") {
		if _, ok := cfg.Regions[name]; !ok {
			if cfg.Regions == nil {
				cfg.Regions = make(map[string]policy.Defaults)
			}
			cfg.Regions[name] = policy.Defaults{}
		}
	}

	if cfg.DefaultAWSProfile == "" {
		cfg.DefaultAWSProfile = "default"
	}
	if len(cfg.Regions) == 0 && cfg.DefaultAWSRegion == "" {
		return nil, fmt.Errorf("config file '%s' defines neither Regions nor DefaultAWSRegion", path)
	}

	return &cfg, nil
}

// RegionNames returns the regions a pass should scan, sorted for
// deterministic iteration. When no Regions block is configured the default
// region is scanned alone.
func (c *Config) RegionNames() []string {
	if len(c.Regions) == 0 {
		return []string{c.DefaultAWSRegion}
	}
	names := make([]string, 0, len(c.Regions))
	for name := range c.Regions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
