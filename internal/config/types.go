// Package config loads, validates, and normalizes the layered YAML
// configuration that drives a query run. Two historical dialects exist on
// disk; both are adapted into the canonical Config at load time so the rest
// of the engine only ever sees one shape.
package config

import (
	"fmt"

	"github.com/oakwood-commons/kqlrun/internal/transform"
)

// QueryFileExtension is the suffix every executable query file must carry.
const QueryFileExtension = ".kql"

// Format identifies the serialization applied to a query result before it is
// written to its destination.
type Format string

const (
	FormatNone  Format = "none"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
	FormatYAMLC Format = "yamlc"
	FormatTable Format = "table"
	FormatTSV   Format = "tsv"
)

// ParseFormat validates a format name from a configuration document.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNone, FormatJSON, FormatJSONC, FormatYAML, FormatYAMLC, FormatTable, FormatTSV:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format: %q", s)
}

// Extension returns the file extension used when this format is written to
// disk. The colorized variants share the extension of their plain form
// because color is stripped on file output.
func (f Format) Extension() string {
	switch f {
	case FormatJSON, FormatJSONC:
		return ".json"
	case FormatYAML, FormatYAMLC:
		return ".yaml"
	case FormatTSV:
		return ".tsv"
	case FormatTable:
		return ".txt"
	default:
		return ""
	}
}

// Colorized reports whether the format applies ANSI color on terminal output.
func (f Format) Colorized() bool {
	return f == FormatJSONC || f == FormatYAMLC
}

// Compression identifies the framing applied to file outputs. Console
// outputs ignore it.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZip  Compression = "zip"
)

// ParseCompression validates a compression name from a configuration
// document. An empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionNone, nil
	case CompressionNone, CompressionGzip, CompressionZip:
		return c, nil
	}
	return "", fmt.Errorf("invalid compression type: %q", s)
}

// FilesRule narrows which query files in a folder execute. Include and
// Exclude are mutually exclusive; entries match a file's path relative to
// the query folder exactly (no globbing).
type FilesRule struct {
	Include []string
	Exclude []string
}

// OutputSpec is one rendering+destination configuration attached to a query.
type OutputSpec struct {
	Format Format

	// Transform is the compiled projection applied to the result before
	// rendering; nil means identity. TransformText preserves the source for
	// logging.
	Transform     *transform.Expression
	TransformText string

	// Destination is a path template; {query} and {query-folder} expand per
	// query file. Empty means the console stream.
	Destination string

	Compression Compression
}

// QuerySpec names one query file and its output overrides.
type QuerySpec struct {
	// File is the query file's path relative to the query folder.
	File string

	// Outputs overrides the run-wide defaults when non-empty.
	Outputs []OutputSpec
}

// Config is the canonical in-memory configuration. It is built once per run
// and read-only afterwards.
type Config struct {
	Version string

	// Files filters the recursive folder enumeration. Only meaningful when
	// Queries is empty.
	Files *FilesRule

	// Queries, when non-empty, pins the run to exactly these files.
	Queries []QuerySpec

	// Defaults are the outputs applied to queries without an override list.
	Defaults []OutputSpec

	// FailOnQueryError, when set, decides whether per-query backend failures
	// produce a non-zero exit. Nil defers to the CLI flag.
	FailOnQueryError *bool
}

// Default returns the canonical configuration used when no config file
// exists: every query file in the folder, one console JSON output.
func Default() *Config {
	return &Config{
		Version:  "1.0",
		Defaults: defaultOutputs(),
	}
}

func defaultOutputs() []OutputSpec {
	return []OutputSpec{{Format: FormatJSON, Compression: CompressionNone}}
}

// OutputsFor returns the output list for the given query file: the
// per-query override when one exists, otherwise the run-wide defaults.
func (c *Config) OutputsFor(relPath string) []OutputSpec {
	for _, q := range c.Queries {
		if q.File == relPath && len(q.Outputs) > 0 {
			return q.Outputs
		}
	}
	if len(c.Defaults) > 0 {
		return c.Defaults
	}
	return defaultOutputs()
}

// InvalidError reports a fatal configuration problem. Field carries the path
// of the offending value when known. A run never starts on an invalid
// configuration because selection rules and transforms are run-wide.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration at %s: %s", e.Field, e.Reason)
}
