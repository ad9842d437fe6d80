package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read() (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single timed subtitle line
type Line struct {
	Index          int           // subtitle index, unique and ordering-significant
	StartTime      time.Duration // start time
	EndTime        time.Duration // end time
	Text           string        // source text
	TranslatedText string        // translated text, empty until translation ran
}

// File represents a subtitle document
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT
	Path     string
}

// Texts returns the source text of every line in index order.
func (f *File) Texts() []string {
	texts := make([]string, len(f.Lines))
	for i, line := range f.Lines {
		texts[i] = line.Text
	}
	return texts
}
