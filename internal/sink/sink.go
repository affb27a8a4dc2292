// Package sink resolves output destinations and writes rendered bytes to
// the console or to files, with optional compression framing.
package sink

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/oakwood-commons/kqlrun/internal/config"
)

// Placeholders supported in destination path templates.
const (
	PlaceholderQuery       = "{query}"
	PlaceholderQueryFolder = "{query-folder}"
)

// InvalidDestinationError reports a destination path that cannot be written
// to. Nothing is written when it is returned.
type InvalidDestinationError struct {
	Path   string
	Reason string
}

func (e *InvalidDestinationError) Error() string {
	return fmt.Sprintf("invalid destination %q: %s", e.Path, e.Reason)
}

// WriteError wraps a failed file write. The destination never holds a
// partial file: content lands in a temp file first and is renamed into
// place.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Destination describes where one rendered output goes.
type Destination struct {
	// Template is the configured path template; empty means console.
	Template string

	// BaseDir anchors relative resolved paths.
	BaseDir string

	// Folder is the query folder of the run; its base name substitutes for
	// {query-folder} when the query file sits at the folder root.
	Folder string

	// QueryFile is the selected query file's path relative to Folder;
	// placeholder values derive from it.
	QueryFile string

	Format      config.Format
	Compression config.Compression
}

// Console reports whether the destination is the console stream.
func (d Destination) Console() bool {
	return d.Template == ""
}

// Resolve expands the template placeholders and applies the extension
// policy, returning the final uncompressed file path. The fully resolved
// path must not contain whitespace.
func (d Destination) Resolve() (string, error) {
	rel := filepath.ToSlash(d.QueryFile)
	query := strings.TrimSuffix(path.Base(rel), config.QueryFileExtension)
	folderName := path.Base(path.Dir(rel))
	if folderName == "." {
		folderName = filepath.Base(filepath.Clean(d.Folder))
	}

	p := strings.ReplaceAll(d.Template, PlaceholderQueryFolder, folderName)
	p = strings.ReplaceAll(p, PlaceholderQuery, query)
	if !hasFormatExtension(p) {
		p += d.Format.Extension()
	}
	if !filepath.IsAbs(p) && d.BaseDir != "" {
		p = filepath.Join(d.BaseDir, p)
	}
	if strings.IndexFunc(p, unicode.IsSpace) >= 0 {
		return "", &InvalidDestinationError{Path: p, Reason: "path must not contain whitespace"}
	}
	return p, nil
}

// formatExtensions are the suffixes a destination template may carry to
// suppress the automatic extension. Dots inside query names (v1.2-scan) are
// not extensions.
var formatExtensions = []string{".json", ".yaml", ".tsv", ".txt"}

func hasFormatExtension(p string) bool {
	for _, ext := range formatExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// Sink writes rendered outputs. Stdout defaults to os.Stdout and exists for
// tests and embedding.
type Sink struct {
	Stdout io.Writer
}

// Write delivers data to the destination and returns the final file path,
// empty for console output. Console writes append a trailing newline and
// ignore the compression setting. File writes create missing parent
// directories and are atomic: rewriting the same destination with the same
// bytes is idempotent, and a failed write leaves no partial file behind.
func (s *Sink) Write(data []byte, dest Destination) (string, error) {
	if dest.Console() {
		w := s.Stdout
		if w == nil {
			w = os.Stdout
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return "", &WriteError{Path: "console", Err: err}
		}
		return "", nil
	}

	p, err := dest.Resolve()
	if err != nil {
		return "", err
	}

	switch dest.Compression {
	case config.CompressionGzip:
		final := p + ".gz"
		framed, err := gzipBytes(data)
		if err != nil {
			return "", &WriteError{Path: final, Err: err}
		}
		return final, writeAtomic(final, framed)
	case config.CompressionZip:
		final := strings.TrimSuffix(p, filepath.Ext(p)) + ".zip"
		framed, err := zipBytes(filepath.Base(p), data)
		if err != nil {
			return "", &WriteError{Path: final, Err: err}
		}
		return final, writeAtomic(final, framed)
	default:
		return p, writeAtomic(p, data)
	}
}

// writeAtomic writes data to path via a temp file in the same directory and
// a rename, so readers never observe a partial file.
func writeAtomic(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: p, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*")
	if err != nil {
		return &WriteError{Path: p, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: p, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: p, Err: err}
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: p, Err: err}
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipBytes builds a single-entry archive; the entry keeps the uncompressed
// file name.
func zipBytes(entryName string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(entryName)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
