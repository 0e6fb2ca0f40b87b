package config

import (
	"os"

	"github.com/btree-query-bench/lineindex/dbms/errs"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Index  IndexConfig  `yaml:"index"`
	Source SourceConfig `yaml:"source"`
	Log    LogConfig    `yaml:"log"`
}

type IndexConfig struct {
	Path       string `yaml:"path"`
	Backend    string `yaml:"backend"` // dir | pebble | sqlite | pages
	Order      int    `yaml:"order"`
	Sync       bool   `yaml:"sync"`
	CacheBytes int64  `yaml:"cache_bytes"` // >0 enables the node cache
}

type SourceConfig struct {
	Delimiter string `yaml:"delimiter"` // single byte
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

const (
	defaultPath      = "lineindex_data"
	defaultBackend   = "dir"
	defaultOrder     = 3
	defaultDelimiter = ","
)

// Load reads the YAML file at configPath over the defaults. An empty
// configPath tries configs/lineindex.yaml, then lineindex.yaml, and falls
// back to the defaults when neither exists.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Index: IndexConfig{
			Path:    defaultPath,
			Backend: defaultBackend,
			Order:   defaultOrder,
			Sync:    true,
		},
		Source: SourceConfig{
			Delimiter: defaultDelimiter,
		},
	}

	if configPath == "" {
		for _, p := range []string{"configs/lineindex.yaml", "lineindex.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, errs.Decode(err, "config: parse %s", p)
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, errs.IO(err, "config: read %s", configPath)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, errs.Decode(err, "config: parse %s", configPath)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Index.Path == "" {
		cfg.Index.Path = defaultPath
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = defaultBackend
	}
	if cfg.Index.Order < 2 {
		cfg.Index.Order = defaultOrder
	}
	if cfg.Index.CacheBytes < 0 {
		cfg.Index.CacheBytes = 0
	}
	if len(cfg.Source.Delimiter) != 1 {
		cfg.Source.Delimiter = defaultDelimiter
	}
}

// Delimiter returns the configured field separator.
func (c *Config) Delimiter() byte {
	return c.Source.Delimiter[0]
}
