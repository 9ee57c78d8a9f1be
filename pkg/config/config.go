// Package config holds the engine facade's tunables. Each tunable has its
// own getter; there are no per-tunable setters. Changes go through
// SetAll (or Update within this package), which validates the whole set
// at call time and commits nothing when validation fails.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quiver-db/quiver/pkg/compaction"
	"github.com/quiver-db/quiver/pkg/run"
)

const CurrentConfigVersion = 1

// ErrInvalidConfig marks a usage error: invalid configuration surfaced to
// the caller with no state mutation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// values holds the actual tunables, kept separate from Config's mutex so a
// rejected Update can restore a prior snapshot with a plain struct copy.
type values struct {
	Version int `json:"version"`

	// MemTableCapacity bounds the memtable's entry count before a flush
	// is triggered.
	MemTableCapacity int64 `json:"memtable_capacity"`

	// SizeRatioT is the per-level growth factor T that tiered and
	// hybrid compaction trigger on.
	SizeRatioT int `json:"size_ratio_t"`

	// SSTShape selects the array or B-tree run layout for new runs.
	SSTShape run.Shape `json:"sst_shape"`

	// SearchMode selects the in-page search algorithm new reads use.
	SearchMode run.SearchMode `json:"search_mode"`

	// BufferPoolEnabled gates caching entirely; false disables the pool.
	BufferPoolEnabled bool `json:"buffer_pool_enabled"`

	// BufferPoolCapacity is the frame budget once enabled.
	BufferPoolCapacity int `json:"buffer_pool_capacity"`

	// BufferPoolInitialDepth seeds the starting directory size (2^depth
	// slots) before any splits occur.
	BufferPoolInitialDepth uint `json:"buffer_pool_initial_depth"`

	// CompactionPolicy selects none/tiered/leveled/dostoevsky.
	CompactionPolicy compaction.Policy `json:"compaction_policy"`

	// HybridLastLevel is the boundary level for the hybrid policy: at
	// and below it compaction is leveled, above it tiered. Unused by
	// the other policies.
	HybridLastLevel int `json:"hybrid_last_level"`

	// BloomEnabled gates filter construction and consultation.
	BloomEnabled bool `json:"bloom_enabled"`

	// BloomBitsPerEntry is the filter density. Must be positive when
	// BloomEnabled is true.
	BloomBitsPerEntry uint64 `json:"bloom_bits_per_entry"`
}

// Config is the full set of tunables the engine facade reads and writes.
// All access goes through its methods so every mutation is validated and
// serialized the same way.
type Config struct {
	mu sync.RWMutex
	v  values
}

// NewDefaultConfig returns a Config with recommended defaults for a fresh
// database.
func NewDefaultConfig() *Config {
	return &Config{v: values{
		Version:                CurrentConfigVersion,
		MemTableCapacity:       64 * 1024,
		SizeRatioT:             4,
		SSTShape:               run.ShapeArray,
		SearchMode:             run.SearchLinear,
		BufferPoolEnabled:      true,
		BufferPoolCapacity:     4096,
		BufferPoolInitialDepth: 4,
		CompactionPolicy:       compaction.PolicyLeveled,
		HybridLastLevel:        2,
		BloomEnabled:           true,
		BloomBitsPerEntry:      10,
	}}
}

// Field accessors. Each reads one field of the values struct; writes to
// those fields go only through Update and SetAll.

func (c *Config) MemTableCapacity() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.MemTableCapacity
}

func (c *Config) SizeRatioT() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.SizeRatioT
}

func (c *Config) SSTShape() run.Shape {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.SSTShape
}

func (c *Config) SearchMode() run.SearchMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.SearchMode
}

func (c *Config) BufferPoolEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.BufferPoolEnabled
}

func (c *Config) BufferPoolCapacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.BufferPoolCapacity
}

func (c *Config) BufferPoolInitialDepth() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.BufferPoolInitialDepth
}

func (c *Config) CompactionPolicy() compaction.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.CompactionPolicy
}

func (c *Config) HybridLastLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.HybridLastLevel
}

func (c *Config) BloomEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.BloomEnabled
}

func (c *Config) BloomBitsPerEntry() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.BloomBitsPerEntry
}

// Validate checks the configuration for internally consistent, legal
// values. It never mutates state; callers rejecting an update discard
// it whole.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.validate()
}

func (v *values) validate() error {
	if v.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, v.Version)
	}
	if v.MemTableCapacity <= 0 {
		return fmt.Errorf("%w: memtable capacity must be positive", ErrInvalidConfig)
	}
	if v.SizeRatioT < 2 {
		return fmt.Errorf("%w: sst size ratio T must be at least 2", ErrInvalidConfig)
	}
	if v.SSTShape != run.ShapeArray && v.SSTShape != run.ShapeBTree {
		return fmt.Errorf("%w: unknown sst implementation %q", ErrInvalidConfig, v.SSTShape)
	}
	if v.SearchMode != run.SearchLinear && v.SearchMode != run.SearchBinary {
		return fmt.Errorf("%w: unknown sst search algorithm %v", ErrInvalidConfig, v.SearchMode)
	}
	if v.BufferPoolEnabled && v.BufferPoolCapacity <= 0 {
		return fmt.Errorf("%w: buffer pool capacity must be positive when enabled", ErrInvalidConfig)
	}
	switch v.CompactionPolicy {
	case compaction.PolicyNone, compaction.PolicyTiered, compaction.PolicyLeveled, compaction.PolicyHybrid:
	default:
		return fmt.Errorf("%w: unknown compaction policy %v", ErrInvalidConfig, v.CompactionPolicy)
	}
	if v.CompactionPolicy == compaction.PolicyHybrid && v.HybridLastLevel < 0 {
		return fmt.Errorf("%w: hybrid last level must be non-negative", ErrInvalidConfig)
	}
	if v.BloomEnabled && v.BloomBitsPerEntry == 0 {
		return fmt.Errorf("%w: bloom filter bits per entry must be positive when enabled", ErrInvalidConfig)
	}
	return nil
}

// ValidateName rejects an empty or whitespace-bearing database
// directory name. Exported so the engine facade can reject a bad name
// at open() before touching the filesystem.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("%w: database name %q contains whitespace", ErrInvalidConfig, name)
	}
	return nil
}

// Update applies fn to a copy of the current values under the write lock,
// validates the result, and only then commits it — a rejected update
// leaves the live config untouched.
func (c *Config) Update(fn func(*values)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.v
	fn(&next)
	if err := next.validate(); err != nil {
		return err
	}
	c.v = next
	return nil
}

// Snapshot returns a copy of the current values, safe to read without
// holding the config's lock.
func (c *Config) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Values(c.v)
}

// Values is the exported form of the tunables, returned by Snapshot and
// accepted by SetAll for bulk configuration (e.g. loading a saved file).
type Values values

// SetAll replaces every tunable at once, validating before committing.
func (c *Config) SetAll(v Values) error {
	return c.Update(func(dst *values) { *dst = values(v) })
}

// SaveFile persists the configuration as JSON via the write-temp,
// atomic-rename idiom used elsewhere in this module for small metadata
// files (see pkg/run/meta.go).
func (c *Config) SaveFile(path string) error {
	snap := c.Snapshot()
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: rename %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a previously saved configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var v Values
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	c := &Config{v: values(v)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ConfigFileName is the JSON sidecar's name inside a database directory.
const ConfigFileName = "CONFIG"

// DefaultConfigPath joins a database directory with ConfigFileName.
func DefaultConfigPath(dbPath string) string {
	return filepath.Join(dbPath, ConfigFileName)
}
