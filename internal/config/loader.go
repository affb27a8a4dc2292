package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kqlrun/internal/transform"
)

// DefaultConfigNames are the file names probed when no explicit config path
// is given, in priority order.
var DefaultConfigNames = []string{".kql-config.yaml", ".kql-config.yml"}

// Find locates the configuration document for a query folder. Priority:
// the explicit path, a folder-local default file, a default file in baseDir.
// An empty result with a nil error means no configuration exists and the
// caller should fall back to Default().
func Find(folder, explicit, baseDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", &InvalidError{Field: "config", Reason: fmt.Sprintf("configuration file not found: %s", explicit)}
		}
		return explicit, nil
	}
	for _, dir := range []string{folder, baseDir} {
		if dir == "" {
			continue
		}
		for _, name := range DefaultConfigNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", nil
}

// document mirrors the on-disk YAML shape across both dialects. The
// canonical dialect uses queries[]; the legacy dialect uses files{} plus a
// top-level output.formats[] default list.
type document struct {
	Version          string       `yaml:"version"`
	FailOnQueryError *bool        `yaml:"failOnQueryError"`
	Files            *filesBlock  `yaml:"files"`
	Queries          []queryBlock `yaml:"queries"`
	Output           *outputBlock `yaml:"output"`
}

type filesBlock struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type queryBlock struct {
	File   string        `yaml:"file"`
	Output []formatBlock `yaml:"output"`
}

type outputBlock struct {
	Formats []formatBlock `yaml:"formats"`
}

// formatBlock carries the fields of both dialects; the schema guarantees
// they never mix within one document.
type formatBlock struct {
	// canonical dialect
	Format string `yaml:"format"`
	File   string `yaml:"file"`

	// legacy dialect
	Type             string `yaml:"type"`
	Path             string `yaml:"path"`
	FilenameTemplate string `yaml:"filename_template"`

	// shared
	Query       string `yaml:"query"`
	Compression string `yaml:"compression"`
}

// Load reads, schema-validates, and adapts the configuration document at
// path into the canonical Config. schemaPath overrides the embedded schema
// when non-empty. folder anchors the existence checks for relative query
// file paths. Every failure here is fatal for the run: selection rules and
// transforms are run-wide, so partial execution on a broken configuration is
// never allowed.
func Load(path, schemaPath, folder string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidError{Field: "config", Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidError{Field: "config", Reason: fmt.Sprintf("invalid YAML in %s: %v", path, err)}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	sch, err := compileSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(sch, raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidError{Field: "config", Reason: fmt.Sprintf("decode %s: %v", path, err)}
	}

	return adapt(&doc, folder)
}

// adapt converts a parsed document of either dialect into the canonical
// Config, performing the semantic checks the schema cannot express.
func adapt(doc *document, folder string) (*Config, error) {
	cfg := &Config{
		Version:          doc.Version,
		FailOnQueryError: doc.FailOnQueryError,
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}

	if len(doc.Queries) > 0 && doc.Files != nil {
		return nil, &InvalidError{Field: "/files", Reason: "queries and files selection rules cannot be combined"}
	}
	if len(doc.Queries) > 0 && doc.Output != nil {
		return nil, &InvalidError{Field: "/output", Reason: "queries and a top-level output block cannot be combined"}
	}

	if doc.Files != nil {
		if len(doc.Files.Include) > 0 && len(doc.Files.Exclude) > 0 {
			return nil, &InvalidError{Field: "/files", Reason: "cannot specify both include and exclude"}
		}
		cfg.Files = &FilesRule{Include: doc.Files.Include, Exclude: doc.Files.Exclude}
	}

	for i, q := range doc.Queries {
		spec, err := adaptQuery(q, i, folder)
		if err != nil {
			return nil, err
		}
		cfg.Queries = append(cfg.Queries, spec)
	}

	if doc.Output != nil {
		for i, f := range doc.Output.Formats {
			out, err := adaptLegacyFormat(f, i)
			if err != nil {
				return nil, err
			}
			cfg.Defaults = append(cfg.Defaults, out)
		}
	}
	if len(cfg.Defaults) == 0 {
		cfg.Defaults = defaultOutputs()
	}

	return cfg, nil
}

func adaptQuery(q queryBlock, idx int, folder string) (QuerySpec, error) {
	field := fmt.Sprintf("/queries/%d/file", idx)
	if !strings.HasSuffix(q.File, QueryFileExtension) {
		return QuerySpec{}, &InvalidError{Field: field, Reason: fmt.Sprintf("query file must end with %s: %s", QueryFileExtension, q.File)}
	}
	if strings.IndexFunc(q.File, unicode.IsSpace) >= 0 {
		return QuerySpec{}, &InvalidError{Field: field, Reason: fmt.Sprintf("query file path must not contain whitespace: %q", q.File)}
	}
	rel := filepath.ToSlash(q.File)
	if _, err := os.Stat(filepath.Join(folder, rel)); err != nil {
		return QuerySpec{}, &InvalidError{Field: field, Reason: fmt.Sprintf("query file does not exist: %s", q.File)}
	}

	spec := QuerySpec{File: rel}
	for i, f := range q.Output {
		out, err := adaptOutput(f, fmt.Sprintf("/queries/%d/output/%d", idx, i))
		if err != nil {
			return QuerySpec{}, err
		}
		spec.Outputs = append(spec.Outputs, out)
	}
	return spec, nil
}

func adaptOutput(f formatBlock, field string) (OutputSpec, error) {
	format, err := ParseFormat(f.Format)
	if err != nil {
		return OutputSpec{}, &InvalidError{Field: field + "/format", Reason: err.Error()}
	}
	compression, err := ParseCompression(f.Compression)
	if err != nil {
		return OutputSpec{}, &InvalidError{Field: field + "/compression", Reason: err.Error()}
	}
	expr, err := transform.Compile(f.Query)
	if err != nil {
		return OutputSpec{}, &InvalidError{Field: field + "/query", Reason: err.Error()}
	}
	out := OutputSpec{
		Format:        format,
		Transform:     expr,
		TransformText: expr.String(),
		Destination:   f.File,
		Compression:   compression,
	}
	// format none is a side-effect-free no-op: destination and compression
	// are ignored entirely.
	if format == FormatNone {
		out.Destination = ""
		out.Compression = CompressionNone
	}
	return out, nil
}

// legacyDefaultTemplate mirrors the historical default file layout.
const legacyDefaultTemplate = "{query-folder}/{query}.json"

// legacyDefaultPath is the historical base directory for legacy file
// outputs.
const legacyDefaultPath = "query-results"

// adaptLegacyFormat maps a legacy output.formats entry onto the canonical
// OutputSpec. The legacy dialect predates the format enum; its serialization
// was always JSON.
func adaptLegacyFormat(f formatBlock, idx int) (OutputSpec, error) {
	field := fmt.Sprintf("/output/formats/%d", idx)
	compression, err := ParseCompression(f.Compression)
	if err != nil {
		return OutputSpec{}, &InvalidError{Field: field + "/compression", Reason: err.Error()}
	}
	expr, err := transform.Compile(legacyQuery(f.Query))
	if err != nil {
		return OutputSpec{}, &InvalidError{Field: field + "/query", Reason: err.Error()}
	}

	out := OutputSpec{
		Format:        FormatJSON,
		Transform:     expr,
		TransformText: expr.String(),
		Compression:   compression,
	}

	switch f.Type {
	case "console":
		out.Compression = CompressionNone
	case "file":
		template := f.FilenameTemplate
		if template == "" {
			template = legacyDefaultTemplate
		} else if !strings.Contains(template, "{query}") && !strings.Contains(template, "{query-folder}") {
			return OutputSpec{}, &InvalidError{
				Field:  field + "/filename_template",
				Reason: "filename template must contain at least one of: {query}, {query-folder}",
			}
		}
		base := f.Path
		if base == "" {
			base = legacyDefaultPath
		}
		out.Destination = base + "/" + template
	default:
		return OutputSpec{}, &InvalidError{Field: field + "/type", Reason: fmt.Sprintf("invalid output type: %q", f.Type)}
	}
	return out, nil
}

// legacyQuery normalizes the legacy identity marker "." to an empty
// expression.
func legacyQuery(q string) string {
	if strings.TrimSpace(q) == "." {
		return ""
	}
	return q
}
