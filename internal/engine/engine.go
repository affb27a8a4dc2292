// Package engine orchestrates a full run: configuration resolution, query
// file selection, backend execution, and output delivery.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/oakwood-commons/kqlrun/internal/config"
	"github.com/oakwood-commons/kqlrun/internal/render"
	"github.com/oakwood-commons/kqlrun/internal/runner"
	"github.com/oakwood-commons/kqlrun/internal/selector"
	"github.com/oakwood-commons/kqlrun/internal/sink"
	"github.com/oakwood-commons/kqlrun/pkg/logger"
	"github.com/oakwood-commons/kqlrun/pkg/settings"
)

// Options configures one run.
type Options struct {
	// Folder is the query folder to execute. Required.
	Folder string

	// WorkspaceID is the target workspace. Required.
	WorkspaceID string

	// ConfigPath, when set, names the configuration file explicitly instead
	// of probing the default locations.
	ConfigPath string

	// SchemaPath, when set, overrides the embedded configuration schema.
	SchemaPath string

	// Colorize enables ANSI color for colorized formats on console output.
	Colorize bool

	// Stdout receives console outputs; defaults to os.Stdout.
	Stdout io.Writer
}

// OutputResult records the delivery of one configured output.
type OutputResult struct {
	Format      config.Format
	Destination string
	Err         error
}

// QueryResult records the execution of one query file. A non-nil Err means
// the backend call failed and no outputs were attempted.
type QueryResult struct {
	File    string
	Err     error
	Outputs []OutputResult
}

// Summary is the complete outcome of a run. Per-query and per-output
// failures live here; only configuration and selection problems surface as
// an error from Run.
type Summary struct {
	Config  *config.Config
	Queries []QueryResult
}

// Counts returns the number of executed queries and written outputs, failed
// or not.
func (s *Summary) Counts() (queries, outputs int) {
	for _, q := range s.Queries {
		queries++
		outputs += len(q.Outputs)
	}
	return queries, outputs
}

// QueryFailures returns the queries whose backend call failed.
func (s *Summary) QueryFailures() []QueryResult {
	var out []QueryResult
	for _, q := range s.Queries {
		if q.Err != nil {
			out = append(out, q)
		}
	}
	return out
}

// OutputFailures returns the outputs that could not be delivered.
func (s *Summary) OutputFailures() []OutputResult {
	var out []OutputResult
	for _, q := range s.Queries {
		for _, o := range q.Outputs {
			if o.Err != nil {
				out = append(out, o)
			}
		}
	}
	return out
}

// Engine runs batches of query files against a backend.
type Engine struct {
	runner *runner.Runner
	sink   *sink.Sink
}

// New returns an Engine over the given backend.
func New(backend runner.Backend) *Engine {
	return &Engine{runner: runner.New(backend)}
}

// Run executes every selected query file under opts.Folder and delivers the
// configured outputs. Run-wide knobs (output base directory, parallelism)
// come from the settings carried in the context; absent settings fall back
// to the CLI defaults. A missing folder or an invalid configuration aborts
// the run; everything downstream of selection is isolated per query and per
// output and reported in the Summary.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := logger.FromContext(ctx)
	params, ok := settings.FromContext(ctx)
	if !ok {
		params = settings.NewCliParams()
	}

	info, err := os.Stat(opts.Folder)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("query folder not found: %s", opts.Folder)
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Config: cfg}

	files, err := selector.Select(opts.Folder, cfg)
	if err != nil {
		if errors.Is(err, selector.ErrNoFilesSelected) {
			log.Info("no query files selected", "folder", opts.Folder)
			return summary, nil
		}
		return nil, err
	}
	log.V(1).Info("selected query files", "count", len(files))

	summary.Queries = make([]QueryResult, len(files))
	if params.Parallel > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(params.Parallel)
		for i, f := range files {
			i, f := i, f
			g.Go(func() error {
				summary.Queries[i] = e.executeQuery(gctx, opts, params, cfg, f)
				return nil
			})
		}
		// workers never return errors; failures land in the summary
		_ = g.Wait()
	} else {
		for i, f := range files {
			summary.Queries[i] = e.executeQuery(ctx, opts, params, cfg, f)
		}
	}
	return summary, nil
}

// resolveConfig locates and loads the configuration, falling back to the
// built-in default when no file exists anywhere.
func resolveConfig(opts Options) (*config.Config, error) {
	baseDir, _ := os.Getwd()
	path, err := config.Find(opts.Folder, opts.ConfigPath, baseDir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path, opts.SchemaPath, opts.Folder)
}

// executeQuery runs one query file and delivers each of its outputs. Output
// failures are independent of each other.
func (e *Engine) executeQuery(ctx context.Context, opts Options, params *settings.Run, cfg *config.Config, file string) QueryResult {
	log := logger.FromContext(ctx)
	result := QueryResult{File: file}

	rs, err := e.runner.Run(ctx, opts.Folder, file, opts.WorkspaceID)
	if err != nil {
		log.Error(err, "query failed", "file", file)
		result.Err = err
		return result
	}

	for _, spec := range cfg.OutputsFor(file) {
		out := e.writeOutput(ctx, opts, params, spec, file, rs)
		if out.Err != nil {
			log.Error(out.Err, "output failed", "file", file, "format", spec.Format)
		}
		result.Outputs = append(result.Outputs, out)
	}
	return result
}

func (e *Engine) writeOutput(ctx context.Context, opts Options, params *settings.Run, spec config.OutputSpec, file string, rs *runner.ResultSet) OutputResult {
	result := OutputResult{Format: spec.Format, Destination: spec.Destination}
	if spec.Format == config.FormatNone {
		return result
	}

	value, err := spec.Transform.Apply(rs.Records())
	if err != nil {
		result.Err = err
		return result
	}

	colorize := opts.Colorize && spec.Format.Colorized() && spec.Destination == ""
	data, err := render.Render(value, rs.Columns, spec.Format, colorize)
	if err != nil {
		result.Err = err
		return result
	}

	s := e.sinkFor(opts)
	path, err := s.Write(data, sink.Destination{
		Template:    spec.Destination,
		BaseDir:     params.OutputDir,
		Folder:      opts.Folder,
		QueryFile:   file,
		Format:      spec.Format,
		Compression: spec.Compression,
	})
	if err != nil {
		result.Err = err
		return result
	}
	if path != "" {
		result.Destination = path
		logger.FromContext(ctx).V(1).Info("output written", "file", file, "path", path)
	}
	return result
}

func (e *Engine) sinkFor(opts Options) *sink.Sink {
	if e.sink != nil {
		return e.sink
	}
	return &sink.Sink{Stdout: opts.Stdout}
}
