package checkout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// copyTree copies regular files and directories below srcRoot into dstRoot
// and returns the number of files copied. Entries for which skip returns
// true are left out, symlinks and other special files are ignored.
func copyTree(src afero.Fs, srcRoot string, dst afero.Fs, dstRoot string, skip func(rel string) bool) (int, error) {
	count := 0
	err := afero.Walk(src, srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return dst.MkdirAll(dstRoot, 0o755)
		}
		if skip != nil && skip(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dstRoot, rel)
		switch {
		case info.IsDir():
			return dst.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			if err := copyFile(src, path, dst, target, info.Mode().Perm()); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func copyFile(src afero.Fs, from string, dst afero.Fs, to string, perm os.FileMode) error {
	in, err := src.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dst.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy '%s': %w", from, err)
	}
	return out.Close()
}
