package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/k1LoW/scenery"
)

const appName = "scenery"

var (
	homePath       string
	configHomePath string
	stateHomePath  string
)

type Config struct {
	// Parent directory searched for scenes-* collections
	ScenesDir string `yaml:"scenesDir,omitempty" json:"scenesDir,omitempty"`
	// Whether page navigation wraps inside the current scene
	Loop *bool `yaml:"loop,omitempty" json:"loop,omitempty"`
	// Number of pages warmed ahead of the current page
	Prefetch *int `yaml:"prefetch,omitempty" json:"prefetch,omitempty"`
	// Capacities of the cache tiers
	Cache *CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`
	// Preview variant served synchronously
	Preview *VariantConfig `yaml:"preview,omitempty" json:"preview,omitempty"`
	// High resolution variant delivered asynchronously
	HighRes *VariantConfig `yaml:"highRes,omitempty" json:"highRes,omitempty"`
	// Thumbnail encoding
	Thumbnail *ThumbnailConfig `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
}

type CacheConfig struct {
	Decoded int `yaml:"decoded,omitempty" json:"decoded,omitempty"` // decoded images
	Encoded int `yaml:"encoded,omitempty" json:"encoded,omitempty"` // encoded data URIs
}

type VariantConfig struct {
	MaxDimension int `yaml:"maxDimension,omitempty" json:"maxDimension,omitempty"`
	Quality      int `yaml:"quality,omitempty" json:"quality,omitempty"` // JPEG quality (1-100)
}

type ThumbnailConfig struct {
	Quality int `yaml:"quality,omitempty" json:"quality,omitempty"`
}

func init() {
	var err error
	homePath, err = os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
}

// Load loads the configuration from the config file.
// It searches for config files in the following order:
// 1. $XDG_CONFIG_HOME/scenery/config-{profile}.yml
// 2. $XDG_CONFIG_HOME/scenery/config.yml
// If no config file is found, it returns an empty Config struct.
func Load(profile string) (*Config, error) {
	var configBasePaths []string
	if profile != "" {
		configBasePaths = append(configBasePaths, filepath.Join(configPath(), fmt.Sprintf("config-%s", profile)))
	}
	configBasePaths = append(configBasePaths, filepath.Join(configPath(), "config"))
	cfg := &Config{}
	for _, basePath := range configBasePaths {
		for _, ext := range []string{".yml", ".yaml"} {
			configPath := basePath + ext
			if b, err := os.ReadFile(configPath); err == nil {
				if err := yaml.Unmarshal(b, cfg); err != nil {
					return nil, fmt.Errorf("failed to unmarshal config %s: %w", configPath, err)
				}
				return cfg, nil
			}
		}
	}
	// If no config file is found, return an empty config
	return cfg, nil
}

// Options converts the configuration into viewer options. Unset values keep the viewer defaults.
func (cfg *Config) Options() []scenery.Option {
	var opts []scenery.Option
	if cfg.Loop != nil {
		opts = append(opts, scenery.WithLoopEnabled(*cfg.Loop))
	}
	if cfg.Prefetch != nil {
		opts = append(opts, scenery.WithPrefetchCount(*cfg.Prefetch))
	}
	if cfg.Cache != nil {
		decoded, encoded := scenery.DefaultDecodedCacheSize, scenery.DefaultEncodedCacheSize
		if cfg.Cache.Decoded > 0 {
			decoded = cfg.Cache.Decoded
		}
		if cfg.Cache.Encoded > 0 {
			encoded = cfg.Cache.Encoded
		}
		opts = append(opts, scenery.WithCacheSize(decoded, encoded))
	}
	if cfg.Preview != nil {
		opts = append(opts, scenery.WithPreview(
			orDefault(cfg.Preview.MaxDimension, scenery.PreviewMaxDimension),
			orDefault(cfg.Preview.Quality, scenery.PreviewQuality),
		))
	}
	if cfg.HighRes != nil {
		opts = append(opts, scenery.WithHighRes(
			orDefault(cfg.HighRes.MaxDimension, scenery.DefaultMaxDimension),
			orDefault(cfg.HighRes.Quality, scenery.MainQuality),
		))
	}
	if cfg.Thumbnail != nil && cfg.Thumbnail.Quality > 0 {
		opts = append(opts, scenery.WithThumbnailQuality(cfg.Thumbnail.Quality))
	}
	return opts
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// configPath returns the path to the configuration directory.
func configPath() string {
	if configHomePath != "" {
		return configHomePath
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		configHomePath = filepath.Join(v, appName)
	} else {
		configHomePath = filepath.Join(homePath, ".config", appName)
	}
	return configHomePath
}

func StateHomePath() string {
	if stateHomePath != "" {
		return stateHomePath
	}
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		stateHomePath = filepath.Join(v, appName)
	} else {
		stateHomePath = filepath.Join(homePath, ".local", "state", appName)
	}
	return stateHomePath
}
