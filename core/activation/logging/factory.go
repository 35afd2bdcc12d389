package logging

import (
	"fmt"

	"github.com/kilianp07/lpgsim/core/factory"
)

// StoreConfig holds the settings shared by the built-in stores.
type StoreConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

var storeRegistry = factory.NewRegistry[LogStore]()

func init() {
	_ = storeRegistry.Register("none", func(map[string]any) (LogStore, error) {
		return NopStore{}, nil
	})
	_ = storeRegistry.Register("jsonl", func(conf map[string]any) (LogStore, error) {
		c, err := decodeStoreConfig(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = storeRegistry.Register("rotating", func(conf map[string]any) (LogStore, error) {
		c, err := decodeStoreConfig(conf)
		if err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = storeRegistry.Register("sqlite", func(conf map[string]any) (LogStore, error) {
		c, err := decodeStoreConfig(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

func decodeStoreConfig(conf map[string]any) (StoreConfig, error) {
	var c StoreConfig
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, fmt.Errorf("activation log path is required")
	}
	return c, nil
}

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[LogStore]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a LogStore from the provided configuration. An empty type
// yields a NopStore.
func NewStore(cfg factory.ModuleConfig) (LogStore, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}
