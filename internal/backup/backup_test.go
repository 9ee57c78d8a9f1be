package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	srcDir, err := os.MkdirTemp("", "backup-src-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(srcDir)

	files := map[string][]byte{
		"CONFIG":            []byte(`{"version":1}`),
		"0-1-array.data":    bytes.Repeat([]byte{0xAB}, 4096),
		"0-1-array.meta":    []byte(`{"id":1,"level":0}`),
		"0-1-array.bloom":   bytes.Repeat([]byte{0x01, 0x02}, 128),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(srcDir, name), data, 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	archive := filepath.Join(t.TempDir(), "db.tar")
	if err := Export(srcDir, archive); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive not created: %v", err)
	}

	dstDir := filepath.Join(t.TempDir(), "restored")
	if err := Import(archive, dstDir); err != nil {
		t.Fatalf("Import: %v", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dstDir, name))
		if err != nil {
			t.Fatalf("read restored %s: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("restored %s differs: got %d bytes, want %d bytes", name, len(got), len(want))
		}
	}
}

func TestExportEmptyDirectory(t *testing.T) {
	srcDir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "empty.tar")
	if err := Export(srcDir, archive); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dstDir := filepath.Join(t.TempDir(), "restored")
	if err := Import(archive, dstDir); err != nil {
		t.Fatalf("Import: %v", err)
	}
	entries, err := os.ReadDir(dstDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty restored directory, got %d entries", len(entries))
	}
}

func TestImportMissingArchive(t *testing.T) {
	if err := Import(filepath.Join(t.TempDir(), "nonexistent.tar"), t.TempDir()); err == nil {
		t.Fatal("expected error importing nonexistent archive")
	}
}
