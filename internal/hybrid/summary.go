package hybrid

import (
	"fmt"
	"time"
)

// Summary is the end-of-run report. A run with degraded lines is not
// a failed run: the output document is complete either way.
type Summary struct {
	RunID          string
	TargetLanguage string
	Total          int
	Translated     int
	DegradedLines  []int // Entry indices that fell back to source text
	CacheHits      int
	ProviderCalls  int
	NameLosses     int
	Elapsed        time.Duration
}

func (s Summary) Degraded() int {
	return len(s.DegradedLines)
}

func (s Summary) String() string {
	return fmt.Sprintf("run %s: %d/%d lines translated, %d degraded, %d cache hits, %d provider calls, %d name losses, %s elapsed",
		s.RunID, s.Translated, s.Total, s.Degraded(), s.CacheHits, s.ProviderCalls, s.NameLosses, s.Elapsed.Round(time.Millisecond))
}
