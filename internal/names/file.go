package names

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
)

// Filename returns the name-table filename for a language pair,
// using 2-letter base codes (e.g. "names.zh-vi.json").
func Filename(sourceLang, targetLang string) string {
	src := normalizeLanguageCode(sourceLang)
	tgt := normalizeLanguageCode(targetLang)
	return "names." + src + "-" + tgt + ".json"
}

// FilePath returns the full path to the name table in dir.
func FilePath(dir, sourceLang, targetLang string) string {
	return filepath.Join(dir, Filename(sourceLang, targetLang))
}

// FindInAncestors walks up from startDir looking for a name table.
// Returns the first found path or empty string.
func FindInAncestors(startDir, sourceLang, targetLang string) string {
	filename := Filename(sourceLang, targetLang)
	currentDir := startDir

	for {
		candidate := filepath.Join(currentDir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Load reads a persisted name table into the registry.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return err
	}

	for source, target := range table {
		r.Add(source, target)
	}
	return nil
}

// Save writes the registry's name table to a JSON file with
// indentation, so curated renderings can be edited by hand.
func (r *Registry) Save(path string) error {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// normalizeLanguageCode parses a language string and returns its
// 2-letter base code.
func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
