// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches root inside fsys for files ending
// with extension. Hidden directories are skipped. The returned slash-separated
// paths are relative to fsys and sorted.
func FindFilesByExtension(fsys fs.FS, root string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(path.Base(p), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), extension) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
