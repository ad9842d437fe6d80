package hybrid

import (
	"fmt"

	"github.com/ddphuc01/dubbing-cli/internal/subtitle"
)

// Batch is a contiguous run of document lines submitted together to
// one provider call. Start is the position of the first line within
// the document.
type Batch struct {
	Start int
	Lines []subtitle.Line
}

// Texts returns the batch's source texts in document order.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Lines))
	for i, line := range b.Lines {
		texts[i] = line.Text
	}
	return texts
}

// Partition splits lines into contiguous batches of at most
// batchSize, preserving index order. The last batch may be smaller.
func Partition(lines []subtitle.Line, batchSize int) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}

	batches := make([]Batch, 0, (len(lines)+batchSize-1)/batchSize)
	for start := 0; start < len(lines); start += batchSize {
		end := min(start+batchSize, len(lines))
		batches = append(batches, Batch{
			Start: start,
			Lines: lines[start:end],
		})
	}
	return batches, nil
}

// merge scatters batch results into a fresh document by position, so
// the outcome is index-ordered no matter which batch finished first.
// Failed or undispatched batches fall back to their source text and
// their line indices are collected as degraded. A batch result of the
// wrong length is a contract violation.
func merge(doc *subtitle.File, batches []Batch, results []batchResult) (*subtitle.File, []int, error) {
	out := &subtitle.File{
		Lines:    make([]subtitle.Line, len(doc.Lines)),
		Language: doc.Language,
		Format:   doc.Format,
		Path:     doc.Path,
	}
	copy(out.Lines, doc.Lines)

	var degraded []int
	for i, batch := range batches {
		result := results[i]
		if result.state == stateSuccess {
			if len(result.translations) != len(batch.Lines) {
				return nil, nil, &ContractViolationError{
					Provider: result.provider,
					Want:     len(batch.Lines),
					Got:      len(result.translations),
				}
			}
			for j := range batch.Lines {
				out.Lines[batch.Start+j].TranslatedText = result.translations[j]
			}
			continue
		}

		// degradation: keep the source text so the document stays
		// complete and well-formed
		for j := range batch.Lines {
			out.Lines[batch.Start+j].TranslatedText = batch.Lines[j].Text
			degraded = append(degraded, batch.Lines[j].Index)
		}
	}
	return out, degraded, nil
}
