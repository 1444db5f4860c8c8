package filesystem

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// ListFiles walks root and returns every regular, non-hidden file accepted
// by accept (nil accepts all), sorted by path. Hidden directories are skipped.
func ListFiles(root string, accept func(path string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if accept != nil && !accept(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files in %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
