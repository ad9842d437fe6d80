package hybrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddphuc01/dubbing-cli/internal/subtitle"
)

func makeLines(n int) []subtitle.Line {
	lines := make([]subtitle.Line, n)
	for i := range lines {
		lines[i] = subtitle.Line{
			Index:     i + 1,
			StartTime: time.Duration(i) * time.Second,
			EndTime:   time.Duration(i)*time.Second + 500*time.Millisecond,
			Text:      "line " + string(rune('a'+i)),
		}
	}
	return lines
}

func TestPartition_ContiguousOrderedBatches(t *testing.T) {
	lines := makeLines(5)

	batches, err := Partition(lines, 2)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.Equal(t, 0, batches[0].Start)
	assert.Len(t, batches[0].Lines, 2)
	assert.Equal(t, 2, batches[1].Start)
	assert.Len(t, batches[1].Lines, 2)
	// the last batch may be smaller
	assert.Equal(t, 4, batches[2].Start)
	assert.Len(t, batches[2].Lines, 1)

	assert.Equal(t, 1, batches[0].Lines[0].Index)
	assert.Equal(t, 5, batches[2].Lines[0].Index)
}

func TestPartition_SingleBatchWhenSizeExceedsDocument(t *testing.T) {
	batches, err := Partition(makeLines(3), 50)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Lines, 3)
}

func TestPartition_RejectsNonPositiveSize(t *testing.T) {
	_, err := Partition(makeLines(3), 0)
	assert.Error(t, err)
	_, err = Partition(makeLines(3), -1)
	assert.Error(t, err)
}

func TestMerge_ScattersByPosition(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(4)}
	batches, err := Partition(doc.Lines, 2)
	require.NoError(t, err)

	results := []batchResult{
		{state: stateSuccess, provider: "p", translations: []string{"t1", "t2"}},
		{state: stateSuccess, provider: "p", translations: []string{"t3", "t4"}},
	}

	out, degraded, err := merge(doc, batches, results)
	require.NoError(t, err)
	assert.Empty(t, degraded)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, translatedTexts(out))

	// source document untouched
	assert.Empty(t, doc.Lines[0].TranslatedText)
}

func TestMerge_FailedBatchFallsBackToSource(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(3)}
	batches, err := Partition(doc.Lines, 2)
	require.NoError(t, err)

	results := []batchResult{
		{state: stateSuccess, provider: "p", translations: []string{"t1", "t2"}},
		{state: stateFailed},
	}

	out, degraded, err := merge(doc, batches, results)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, degraded)
	assert.Equal(t, doc.Lines[2].Text, out.Lines[2].TranslatedText)
}

func TestMerge_LengthMismatchIsContractViolation(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(2)}
	batches, err := Partition(doc.Lines, 2)
	require.NoError(t, err)

	results := []batchResult{
		{state: stateSuccess, provider: "bad", translations: []string{"only one"}},
	}

	_, _, err = merge(doc, batches, results)
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))
}

func translatedTexts(f *subtitle.File) []string {
	out := make([]string, len(f.Lines))
	for i, line := range f.Lines {
		out[i] = line.TranslatedText
	}
	return out
}
