// Package selector decides which query files in a folder execute, honoring
// the configuration's include/exclude rules.
package selector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oakwood-commons/kqlrun/internal/config"
)

// ErrNoFilesSelected is returned when filtering leaves nothing to execute.
// Callers treat it as a successful empty run, not a failure.
var ErrNoFilesSelected = errors.New("no query files selected")

// Select returns the set of query files under folder, as slash-separated
// paths relative to folder. When the configuration pins explicit queries,
// exactly those files are returned in configuration order (the list is
// ordered by the user). Otherwise the folder is enumerated recursively and
// the result is sorted lexicographically by full relative path so runs are
// reproducible.
func Select(folder string, cfg *config.Config) ([]string, error) {
	if len(cfg.Queries) > 0 {
		files := make([]string, 0, len(cfg.Queries))
		for _, q := range cfg.Queries {
			files = append(files, q.File)
		}
		return files, nil
	}

	var files []string
	err := fs.WalkDir(os.DirFS(folder), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), config.QueryFileExtension) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}

	if cfg.Files != nil {
		files = applyRule(files, cfg.Files)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, ErrNoFilesSelected
	}
	return files, nil
}

// applyRule filters the enumerated files by the include or exclude list.
// Matching is exact on the relative path, not glob.
func applyRule(files []string, rule *config.FilesRule) []string {
	if len(rule.Include) > 0 {
		keep := nameSet(rule.Include)
		out := files[:0]
		for _, f := range files {
			if keep[f] {
				out = append(out, f)
			}
		}
		return out
	}
	if len(rule.Exclude) > 0 {
		drop := nameSet(rule.Exclude)
		out := files[:0]
		for _, f := range files {
			if !drop[f] {
				out = append(out, f)
			}
		}
		return out
	}
	return files
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[filepath.ToSlash(n)] = true
	}
	return set
}
