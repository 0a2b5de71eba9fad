// Package config loads versealign configuration from YAML
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nainya/versealign/internal/logger"
	"github.com/nainya/versealign/pkg/align"
	"github.com/nainya/versealign/pkg/corpus"
	"github.com/nainya/versealign/pkg/verse"
)

// DefaultShards are the shard files each bundled corpus is split into.
var DefaultShards = []string{"data-chunk-aa.jsonl", "data-chunk-ab.jsonl", "data-chunk-ac.jsonl"}

var (
	// ErrNoCorpora is returned when the configuration names no corpus.
	ErrNoCorpora = errors.New("config: no corpora configured")
	// ErrNoSource is returned when neither data_root nor base_url is set.
	ErrNoSource = errors.New("config: one of data_root or base_url is required")
)

// Config is the top-level configuration file.
type Config struct {
	DataRoot          string                  `yaml:"data_root"`
	BaseURL           string                  `yaml:"base_url"`
	RequestsPerSecond float64                 `yaml:"requests_per_second"`
	ShardTimeout      Duration                `yaml:"shard_timeout"`
	CacheTTL          Duration                `yaml:"cache_ttl"`
	SearchLimit       int                     `yaml:"search_limit"`
	Manifest          string                  `yaml:"manifest"`
	GrpcPort          int                     `yaml:"grpc_port"`
	MetricsPort       int                     `yaml:"metrics_port"`
	Log               LogConfig               `yaml:"log"`
	DefaultCorpus     string                  `yaml:"default_corpus"`
	Corpora           map[string]CorpusConfig `yaml:"corpora"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CorpusConfig describes one corpus. Shard locators are relative to the
// corpus directory, which defaults to the corpus id.
type CorpusConfig struct {
	Label  string              `yaml:"label"`
	Dir    string              `yaml:"dir"`
	Shards []string            `yaml:"shards"`
	Slots  map[string][]string `yaml:"slots"`
}

// Duration is a time.Duration read from strings like "10s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the bundled three-corpus setup read from ./data.
func DefaultConfig() *Config {
	corpora := map[string]CorpusConfig{
		"tok-pisin": {Label: "Tok Pisin", Shards: append([]string(nil), DefaultShards...)},
		"spanish":   {Label: "Spanish", Shards: append([]string(nil), DefaultShards...)},
		"french":    {Label: "French", Shards: append([]string(nil), DefaultShards...)},
	}

	return &Config{
		DataRoot:          "data",
		RequestsPerSecond: 10,
		ShardTimeout:      Duration(corpus.DefaultShardTimeout),
		CacheTTL:          Duration(corpus.DefaultCacheTTL),
		SearchLimit:       10,
		GrpcPort:          50051,
		MetricsPort:       9090,
		Log:               LogConfig{Level: "info"},
		DefaultCorpus:     "tok-pisin",
		Corpora:           corpora,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file
// keep their default values; a corpora section replaces the default
// corpora entirely.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Corpora = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Corpora == nil {
		cfg.Corpora = DefaultConfig().Corpora
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Corpora) == 0 {
		return ErrNoCorpora
	}
	if c.DataRoot == "" && c.BaseURL == "" {
		return ErrNoSource
	}
	if c.DefaultCorpus != "" {
		if _, ok := c.Corpora[c.DefaultCorpus]; !ok {
			return fmt.Errorf("config: default_corpus %q: %w", c.DefaultCorpus, corpus.ErrUnknownCorpus)
		}
	}
	if c.SearchLimit < 0 {
		return fmt.Errorf("config: search_limit must not be negative, got %d", c.SearchLimit)
	}

	if err := c.CorpusConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// CorpusConfig converts the corpora section into an index configuration.
func (c *Config) CorpusConfig() corpus.Config {
	out := make(corpus.Config, len(c.Corpora))
	for id, cc := range c.Corpora {
		dir := cc.Dir
		if dir == "" {
			dir = id
		}
		shards := make([]string, len(cc.Shards))
		for i, s := range cc.Shards {
			shards[i] = dir + "/" + s
		}

		var slots align.SlotMap
		if len(cc.Slots) > 0 {
			slots = make(align.SlotMap, len(cc.Slots))
			for pane, names := range cc.Slots {
				slots[verse.PaneKey(pane)] = names
			}
		}

		label := cc.Label
		if label == "" {
			label = id
		}
		out[id] = corpus.Corpus{ID: id, Label: label, Shards: shards, Slots: slots}
	}
	return out
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Pretty: c.Log.Pretty}
}
