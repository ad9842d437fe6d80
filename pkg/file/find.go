package file

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindByExt walks dir and returns every file whose extension matches
// ext (case-insensitive, with or without the leading dot).
func FindByExt(dir, ext string) ([]string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ext = strings.ToLower(ext)

	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ext {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}
