// Package backup archives and restores a closed database directory,
// using github.com/klauspost/compress's zstd codec to compress each
// closed, immutable run file for storage. Per-file compression and
// decompression fan out across goroutines with
// golang.org/x/sync/errgroup, since a database directory's run and
// sidecar files are independent of one another and safe to compress or
// decompress in parallel.
//
// Export and Import both require the database to be closed: nothing
// here coordinates with a live engine.DB, and this package never
// touches the network.
package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// maxConcurrency bounds how many files are compressed or decompressed
// at once, so a database directory with thousands of small run files
// doesn't spawn thousands of zstd encoders at once.
func maxConcurrency() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// Export archives every regular file directly inside dbPath into a
// single tar file at archivePath, with each file's content
// independently zstd-compressed before being written as a tar member
// named "<original name>.zst". dbPath must belong to a closed database:
// Export does not lock or otherwise coordinate with a live engine.DB.
func Export(dbPath, archivePath string) error {
	entries, err := os.ReadDir(dbPath)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", dbPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	compressed := make([][]byte, len(names))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrency())
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			data, err := os.ReadFile(filepath.Join(dbPath, name))
			if err != nil {
				return fmt.Errorf("backup: read %s: %w", name, err)
			}
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return fmt.Errorf("backup: new zstd encoder: %w", err)
			}
			defer enc.Close()
			compressed[i] = enc.EncodeAll(data, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("backup: create %s: %w", archivePath, err)
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	for i, name := range names {
		hdr := &tar.Header{
			Name: name + ".zst",
			Mode: 0644,
			Size: int64(len(compressed[i])),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("backup: write header for %s: %w", name, err)
		}
		if _, err := tw.Write(compressed[i]); err != nil {
			return fmt.Errorf("backup: write %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("backup: close archive: %w", err)
	}
	return nil
}

// Import extracts an archive written by Export into dbPath, creating
// dbPath if it does not already exist. Each archive member is
// decompressed independently and concurrently before being written to
// disk under its original (pre-".zst") name.
func Import(archivePath, dbPath string) error {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("backup: create %s: %w", dbPath, err)
	}

	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", archivePath, err)
	}
	defer in.Close()

	type member struct {
		name string
		data []byte
	}
	var members []member

	tr := tar.NewReader(in)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("backup: read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("backup: read member %s: %w", hdr.Name, err)
		}
		name := hdr.Name
		if ext := filepath.Ext(name); ext == ".zst" {
			name = name[:len(name)-len(ext)]
		}
		members = append(members, member{name: name, data: data})
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrency())
	for _, m := range members {
		m := m
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return fmt.Errorf("backup: new zstd decoder: %w", err)
			}
			defer dec.Close()
			plain, err := dec.DecodeAll(m.data, nil)
			if err != nil {
				return fmt.Errorf("backup: decompress %s: %w", m.name, err)
			}
			path := filepath.Join(dbPath, m.name)
			tmp := path + ".importing"
			if err := os.WriteFile(tmp, plain, 0644); err != nil {
				return fmt.Errorf("backup: write %s: %w", tmp, err)
			}
			if err := os.Rename(tmp, path); err != nil {
				return fmt.Errorf("backup: rename %s: %w", tmp, err)
			}
			return nil
		})
	}
	return g.Wait()
}
