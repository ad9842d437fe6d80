package translator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	maxBatch int
	calls    [][]string
	fail     bool
}

func (e *fakeEngine) MaxBatchSize() int { return e.maxBatch }

func (e *fakeEngine) Infer(_ context.Context, texts []string, targetLang string) ([]string, error) {
	if e.fail {
		return nil, errors.New("model out of memory")
	}
	e.calls = append(e.calls, append([]string(nil), texts...))
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = fmt.Sprintf("%s:%s", targetLang, text)
	}
	return out, nil
}

func TestLocalProvider_ChunksToEngineMax(t *testing.T) {
	engine := &fakeEngine{maxBatch: 2}
	p, err := NewLocalProvider("local", engine)
	require.NoError(t, err)

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := p.TranslateBatch(context.Background(), texts, "vi")
	require.NoError(t, err)

	require.Len(t, out, 5)
	assert.Equal(t, "vi:a", out[0])
	assert.Equal(t, "vi:e", out[4])

	// 5 texts with max batch 2 -> chunks of 2, 2, 1 in order
	require.Len(t, engine.calls, 3)
	assert.Equal(t, []string{"a", "b"}, engine.calls[0])
	assert.Equal(t, []string{"c", "d"}, engine.calls[1])
	assert.Equal(t, []string{"e"}, engine.calls[2])
}

func TestLocalProvider_EngineFailureIsFatal(t *testing.T) {
	p, err := NewLocalProvider("local", &fakeEngine{maxBatch: 4, fail: true})
	require.NoError(t, err)

	_, err = p.TranslateBatch(context.Background(), []string{"a"}, "vi")
	require.Error(t, err)

	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, Unavailable, pe.Kind)
	assert.False(t, pe.Kind.Retryable())
}

func TestLocalProvider_EmptyBatch(t *testing.T) {
	p, err := NewLocalProvider("local", &fakeEngine{maxBatch: 4})
	require.NoError(t, err)

	out, err := p.TranslateBatch(context.Background(), nil, "vi")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseLineOutput_KeepsBlankTranslations(t *testing.T) {
	out, err := parseLineOutput([]byte("hello\n\nworld\n"))
	require.NoError(t, err)

	// a blank line is an empty translation, not a line to skip
	assert.Equal(t, []string{"hello", "", "world"}, out)
}

func TestParseLineOutput_RestoresInlineBreaks(t *testing.T) {
	out, err := parseLineOutput([]byte("first[BR]second\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first\nsecond"}, out)
}

func TestNewLocalProvider_Validation(t *testing.T) {
	_, err := NewLocalProvider("", &fakeEngine{})
	assert.Error(t, err)

	_, err = NewLocalProvider("local", nil)
	assert.Error(t, err)
}
