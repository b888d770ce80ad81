// Package lister enumerates the image files a batch run will process.
package lister

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"watermark/internal/faults"
	"watermark/internal/raster"
)

// Images yields supported image paths under root in lexical order. Only
// direct children are listed unless recursive is set. A recursive walk never
// descends into the directories named in skip, so an output root nested in
// the input root is not fed back while jobs are writing to it. The sequence is
// lazy and reading stops as soon as the consumer stops ranging. A traversal
// error is yielded once and ends the sequence.
func Images(root string, recursive bool, skip ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if recursive {
			walk(root, nestedDirs(root, skip), yield)
			return
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			yield("", faults.Wrap(faults.ErrFilesystem, "lister", "read directory", root, err))
			return
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || !raster.Supported(entry.Name()) {
				continue
			}
			if !yield(filepath.Join(root, entry.Name()), nil) {
				return
			}
		}
	}
}

func walk(root string, skip map[string]bool, yield func(string, error) bool) {
	stopped := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && len(skip) > 0 {
			if rel, relErr := filepath.Rel(root, path); relErr == nil && skip[rel] {
				return fs.SkipDir
			}
		}
		if !d.Type().IsRegular() || !raster.Supported(path) {
			return nil
		}
		if !yield(path, nil) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !stopped {
		yield("", faults.Wrap(faults.ErrFilesystem, "lister", "walk", root, err))
	}
}

// nestedDirs returns the entries of skip that lie strictly below root, as
// paths relative to root.
func nestedDirs(root string, skip []string) map[string]bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	nested := make(map[string]bool, len(skip))
	for _, dir := range skip {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, absDir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		nested[rel] = true
	}
	return nested
}
