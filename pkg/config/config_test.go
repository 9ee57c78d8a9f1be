package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quiver-db/quiver/pkg/compaction"
	"github.com/quiver-db/quiver/pkg/run"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if got := cfg.Snapshot().Version; got != CurrentConfigVersion {
		t.Errorf("expected version %d, got %d", CurrentConfigVersion, got)
	}
	if cfg.SSTShape() != run.ShapeArray {
		t.Errorf("expected default shape array, got %v", cfg.SSTShape())
	}
	if cfg.CompactionPolicy() != compaction.PolicyLeveled {
		t.Errorf("expected default compaction policy leveled, got %v", cfg.CompactionPolicy())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*values)
	}{
		{"invalid version", func(v *values) { v.Version = 0 }},
		{"zero memtable capacity", func(v *values) { v.MemTableCapacity = 0 }},
		{"ratio below 2", func(v *values) { v.SizeRatioT = 1 }},
		{"unknown sst shape", func(v *values) { v.SSTShape = run.Shape(99) }},
		{"unknown search mode", func(v *values) { v.SearchMode = run.SearchMode(99) }},
		{"enabled pool with zero capacity", func(v *values) {
			v.BufferPoolEnabled = true
			v.BufferPoolCapacity = 0
		}},
		{"unknown compaction policy", func(v *values) { v.CompactionPolicy = compaction.Policy(99) }},
		{"bloom enabled with zero bits per entry", func(v *values) {
			v.BloomEnabled = true
			v.BloomBitsPerEntry = 0
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			// Mutate the values directly, bypassing Update's own
			// validation, so Validate itself can be exercised.
			tc.mutate(&cfg.v)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestConfigUpdateRejectsInvalid(t *testing.T) {
	cfg := NewDefaultConfig()
	origCapacity := cfg.MemTableCapacity()

	err := cfg.Update(func(v *values) {
		v.MemTableCapacity = 128
		v.SizeRatioT = -1 // invalid: rejects the whole update
	})
	if err == nil {
		t.Fatal("expected error from invalid update")
	}
	if cfg.MemTableCapacity() != origCapacity {
		t.Errorf("rejected update mutated MemTableCapacity: got %d, want %d", cfg.MemTableCapacity(), origCapacity)
	}
}

func TestConfigUpdateAppliesOnValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Update(func(v *values) {
		v.MemTableCapacity = 128
		v.SizeRatioT = 8
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MemTableCapacity() != 128 || cfg.SizeRatioT() != 8 {
		t.Errorf("update did not apply: %+v", cfg.Snapshot())
	}
}

func TestConfigSaveLoadFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg := NewDefaultConfig()
	if err := cfg.Update(func(v *values) {
		v.MemTableCapacity = 4096
		v.CompactionPolicy = compaction.PolicyHybrid
		v.HybridLastLevel = 3
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	path := DefaultConfigPath(tempDir)
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.MemTableCapacity() != 4096 {
		t.Errorf("expected memtable capacity 4096, got %d", loaded.MemTableCapacity())
	}
	if loaded.CompactionPolicy() != compaction.PolicyHybrid || loaded.HybridLastLevel() != 3 {
		t.Errorf("expected hybrid policy at level 3, got %v/%d", loaded.CompactionPolicy(), loaded.HybridLastLevel())
	}

	if _, err := LoadFile(filepath.Join(tempDir, "nonexistent")); err == nil {
		t.Error("expected error loading nonexistent config file")
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("mydb"); err != nil {
		t.Errorf("expected valid name, got: %v", err)
	}
	if err := ValidateName(""); err == nil {
		t.Error("expected error for empty name")
	}
	if err := ValidateName("my db"); err == nil {
		t.Error("expected error for name with whitespace")
	}
}
