package file

import (
	"path/filepath"
	"strings"
)

// InsertLangSuffix turns "show.srt" into "show.<lang>.srt".
func InsertLangSuffix(path, lang string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "." + lang + ext
}

// HasLangSuffix reports whether the filename already carries a
// language suffix before its extension, e.g. "show.vi.srt".
func HasLangSuffix(path, lang string) bool {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return strings.HasSuffix(base, "."+lang)
}
