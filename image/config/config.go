// Package config loads the engine's tunables from a TOML file: copy-up
// worker pool sizing, work-queue depth, and the ImageContext configuration
// flags spec.md §3 lists (clone_copy_on_read, read_only, enable_alloc_hint).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// EngineConfig is the on-disk configuration for one wired-up engine.
type EngineConfig struct {
	// CopyupWorkers sizes the worker pool copy-up completions are
	// dispatched through (image/workqueue.NewPool's first argument).
	CopyupWorkers int `toml:"copyup_workers"`

	// QueueDepth bounds the work queue's pending job channel.
	QueueDepth int `toml:"queue_depth"`

	// DefaultParentOverlap is a parent-overlap value in bytes. It is
	// loaded and validated (it must not be negative), but nothing in this
	// module reads it: overlap comes only from an image's own
	// parent.OverlapQuerier.
	DefaultParentOverlap int64 `toml:"default_parent_overlap"`

	CloneCopyOnRead bool `toml:"clone_copy_on_read"`
	ReadOnly        bool `toml:"read_only"`
	EnableAllocHint bool `toml:"enable_alloc_hint"`
}

// LoadConfig reads an EngineConfig from a TOML file at path.
func LoadConfig(path string) (*EngineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() EngineConfig {
	return EngineConfig{
		CopyupWorkers:   4,
		QueueDepth:      64,
		EnableAllocHint: true,
	}
}

// Validate makes sure configuration fields are usable.
func (c *EngineConfig) Validate() error {
	var result []error

	if c.CopyupWorkers <= 0 {
		result = append(result, fmt.Errorf("copyup_workers must be positive"))
	}
	if c.QueueDepth <= 0 {
		result = append(result, fmt.Errorf("queue_depth must be positive"))
	}
	if c.DefaultParentOverlap < 0 {
		result = append(result, fmt.Errorf("default_parent_overlap cannot be negative"))
	}
	if c.ReadOnly && c.CloneCopyOnRead {
		result = append(result, fmt.Errorf("clone_copy_on_read has no effect when read_only is set"))
	}

	return errors.Join(result...)
}
