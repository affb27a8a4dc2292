// Package runner executes query files against a logs backend. The backend
// itself is an opaque collaborator: it receives the query text and returns a
// tabular result or an error.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oakwood-commons/kqlrun/pkg/logger"
)

// Row maps column names to values for one result row.
type Row = map[string]any

// ResultSet is the tabular response of one query. Columns preserves the
// backend's column order, which Go maps cannot. A ResultSet is never
// modified after construction and never shared across queries.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Records returns the rows as a generic value for the transform and render
// pipeline: a slice with one map per row. The slice is freshly allocated on
// every call but shares the row maps, which stay immutable by convention.
func (rs *ResultSet) Records() []any {
	records := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		records[i] = row
	}
	return records
}

// BackendError reports a failed backend call for a single query file.
// It is reported per query and never aborts the remaining queries of a run.
type BackendError struct {
	QueryFile string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("query %s: %v", e.QueryFile, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend executes one query text against a workspace. Implementations own
// their transport timeouts; time bounds for the query itself live inside
// the query text.
type Backend interface {
	Query(ctx context.Context, workspaceID, query string) (*ResultSet, error)
}

// Runner reads query files and delegates them to a Backend.
type Runner struct {
	backend Backend
}

// New returns a Runner over the given backend.
func New(backend Backend) *Runner {
	return &Runner{backend: backend}
}

// Run executes the query file at relPath under folder against the
// workspace. All failures, including an unreadable query file, are wrapped
// in *BackendError so the caller can isolate them per query.
func (r *Runner) Run(ctx context.Context, folder, relPath, workspaceID string) (*ResultSet, error) {
	text, err := os.ReadFile(filepath.Join(folder, relPath))
	if err != nil {
		return nil, &BackendError{QueryFile: relPath, Err: err}
	}

	log := logger.FromContext(ctx)
	log.V(1).Info("executing query", "file", relPath, "workspace", workspaceID)

	rs, err := r.backend.Query(ctx, workspaceID, string(text))
	if err != nil {
		return nil, &BackendError{QueryFile: relPath, Err: err}
	}
	return rs, nil
}
