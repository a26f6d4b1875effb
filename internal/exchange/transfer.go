package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goodtune/sitetime/internal/usage"
)

// Exporter delivers an encoded export somewhere: a file, a download, stdout.
type Exporter interface {
	Export(ctx context.Context, name, contentType string, data []byte) error
}

// Importer supplies the bytes of a payload to import.
type Importer interface {
	Import(ctx context.Context) ([]byte, error)
}

// Snapshotter is the read side of the tracker.
type Snapshotter interface {
	Snapshot(ctx context.Context) (usage.Snapshot, error)
}

// Merger is the import side of the tracker.
type Merger interface {
	Merge(ctx context.Context, incoming usage.Snapshot) (usage.MergeResult, error)
}

// Export snapshots src, encodes it as f and hands it to exporter. It returns
// the file name used.
func Export(ctx context.Context, src Snapshotter, exporter Exporter, f Format, now time.Time) (string, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, Build(snap, now), f); err != nil {
		return "", err
	}

	name := Filename(f, now)
	if err := exporter.Export(ctx, name, f.ContentType(), buf.Bytes()); err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	return name, nil
}

// Import reads a payload from importer and merges it into dst. The live
// store is untouched when the payload is rejected.
func Import(ctx context.Context, dst Merger, importer Importer) (usage.MergeResult, error) {
	body, err := importer.Import(ctx)
	if err != nil {
		return usage.MergeResult{}, fmt.Errorf("read import: %w", err)
	}
	if len(body) > MaxImportSize {
		return usage.MergeResult{}, formatErr("", "payload exceeds %d bytes", MaxImportSize)
	}

	snap, err := DecodeBytes(body)
	if err != nil {
		return usage.MergeResult{}, err
	}
	return dst.Merge(ctx, snap)
}

// DirExporter writes exports into a directory.
type DirExporter struct {
	Dir string
}

func (e DirExporter) Export(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// WriterExporter streams exports to W, ignoring the file name.
type WriterExporter struct {
	W io.Writer
}

func (e WriterExporter) Export(_ context.Context, _, _ string, data []byte) error {
	_, err := e.W.Write(data)
	return err
}

// FileImporter reads a payload from Path.
type FileImporter struct {
	Path string
}

func (i FileImporter) Import(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(i.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxImportSize+1))
}

// ReaderImporter reads a payload from R.
type ReaderImporter struct {
	R io.Reader
}

func (i ReaderImporter) Import(_ context.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(i.R, MaxImportSize+1))
}

// BytesImporter supplies an in-memory payload.
type BytesImporter []byte

func (b BytesImporter) Import(context.Context) ([]byte, error) {
	return b, nil
}
