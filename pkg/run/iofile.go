package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quiver-db/quiver/pkg/page"
)

// pageFile is a read-only handle to a run's binary page file: an
// *os.File plus its cached size in bytes.
type pageFile struct {
	path string
	file *os.File
	size int64
}

func openPageFile(path string) (*pageFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("run: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("run: stat %s: %w", path, err)
	}
	if !page.ValidSize(stat.Size()) {
		f.Close()
		return nil, fmt.Errorf("%w: %s size %d is not a multiple of page size %d", ErrCorrupt, path, stat.Size(), page.Size)
	}
	return &pageFile{path: path, file: f, size: stat.Size()}, nil
}

func (pf *pageFile) numPages() int64 {
	return pf.size / page.Size
}

func (pf *pageFile) readPage(offset int64) ([]byte, error) {
	if offset < 0 || offset >= pf.numPages() {
		return nil, fmt.Errorf("%w: page offset %d out of range (%d pages) in %s", ErrCorrupt, offset, pf.numPages(), pf.path)
	}
	buf := make([]byte, page.Size)
	if _, err := pf.file.ReadAt(buf, offset*page.Size); err != nil {
		return nil, fmt.Errorf("run: read page %d of %s: %w", offset, pf.path, err)
	}
	return buf, nil
}

func (pf *pageFile) close() error {
	if pf.file == nil {
		return nil
	}
	err := pf.file.Close()
	pf.file = nil
	return err
}

// fileWriter streams whole pages to a temp file and atomically renames
// it into place on finish.
type fileWriter struct {
	finalPath string
	tmpPath   string
	file      *os.File
	pages     int64
}

func createFileWriter(finalPath string) (*fileWriter, error) {
	dir := filepath.Dir(finalPath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(finalPath)))
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("run: create %s: %w", tmpPath, err)
	}
	return &fileWriter{finalPath: finalPath, tmpPath: tmpPath, file: f}, nil
}

func (w *fileWriter) writePage(buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("run: writePage got %d bytes, want %d", len(buf), page.Size)
	}
	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("run: write page to %s: %w", w.tmpPath, err)
	}
	w.pages++
	return nil
}

// finish fsyncs, closes, and atomically renames the temp file into place.
func (w *fileWriter) finish() error {
	if err := w.file.Sync(); err != nil {
		w.abort()
		return fmt.Errorf("run: sync %s: %w", w.tmpPath, err)
	}
	if err := w.file.Close(); err != nil {
		w.abort()
		return fmt.Errorf("run: close %s: %w", w.tmpPath, err)
	}
	w.file = nil
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("run: rename %s to %s: %w", w.tmpPath, w.finalPath, err)
	}
	return nil
}

// abort closes and removes the temp file, leaving no trace of a failed
// write. Per the error-handling design, a failed flush or compaction
// write must not leave partial output behind.
func (w *fileWriter) abort() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	os.Remove(w.tmpPath)
}
