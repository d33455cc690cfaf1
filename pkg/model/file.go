package model

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk YAML shape of a Configuration.
type fileConfig struct {
	FetchSnippet    string          `yaml:"fetch_snippet"`
	AlertChannel    string          `yaml:"alert_channel"`
	DefaultInterval int             `yaml:"default_interval"`
	Thresholds      []fileThreshold `yaml:"thresholds"`
}

type fileThreshold struct {
	Limit    string `yaml:"limit"`
	Interval int    `yaml:"interval"`
}

// ParseYAML decodes and validates a monitor configuration document.
func ParseYAML(data []byte) (*Configuration, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse monitor config: %w", err)
	}

	cfg := &Configuration{
		FetchSnippet:    fc.FetchSnippet,
		AlertChannel:    fc.AlertChannel,
		DefaultInterval: fc.DefaultInterval,
	}
	for i, th := range fc.Thresholds {
		limit, err := decimal.NewFromString(th.Limit)
		if err != nil {
			return nil, fmt.Errorf("threshold %d: invalid limit %q: %w", i, th.Limit, err)
		}
		cfg.Thresholds = append(cfg.Thresholds, Threshold{Limit: limit, Interval: th.Interval})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Thresholds = SortThresholds(cfg.Thresholds)
	return cfg, nil
}

// LoadYAMLFile reads a monitor configuration from path.
func LoadYAMLFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read monitor config: %w", err)
	}
	return ParseYAML(data)
}
