package hybrid

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ddphuc01/dubbing-cli/internal/cache"
	"github.com/ddphuc01/dubbing-cli/internal/names"
	"github.com/ddphuc01/dubbing-cli/internal/subtitle"
	"github.com/ddphuc01/dubbing-cli/internal/translator"
)

// fakeProvider records every batch it receives and delegates the
// outcome to serve, keyed by the zero-based call number.
type fakeProvider struct {
	id    string
	serve func(call int, texts []string) ([]string, error)

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()
	return f.serve(call, texts)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func echoProvider(id string) *fakeProvider {
	return &fakeProvider{id: id, serve: func(_ int, texts []string) ([]string, error) {
		out := make([]string, len(texts))
		for i, t := range texts {
			out[i] = "tr:" + t
		}
		return out, nil
	}}
}

func failingProvider(id string, kind translator.ErrorKind) *fakeProvider {
	return &fakeProvider{id: id, serve: func(_ int, _ []string) ([]string, error) {
		return nil, translator.NewProviderError(id, kind, "induced failure")
	}}
}

func testOptions(chain ...string) Options {
	return Options{
		ProviderChain:  chain,
		BatchSize:      2,
		MaxRetries:     2,
		BackoffBase:    time.Millisecond,
		TargetLanguage: language.Vietnamese,
	}
}

func newTestOrchestrator(t *testing.T, opts Options, providers []translator.Provider, store cache.Store, registry *names.Registry) *Orchestrator {
	t.Helper()
	o, err := New(opts, providers, store, registry)
	require.NoError(t, err)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestNew_RejectsBrokenChain(t *testing.T) {
	p := echoProvider("remote")

	_, err := New(testOptions(), []translator.Provider{p}, nil, nil)
	assert.Error(t, err)

	_, err = New(testOptions("nonexistent"), []translator.Provider{p}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestTranslate_PreservesLineCountAndTimestamps(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(5)}
	p := echoProvider("remote")
	o := newTestOrchestrator(t, testOptions("remote"), []translator.Provider{p}, nil, nil)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, out.Lines, len(doc.Lines))
	for i, line := range out.Lines {
		assert.Equal(t, doc.Lines[i].Index, line.Index)
		assert.Equal(t, doc.Lines[i].StartTime, line.StartTime)
		assert.Equal(t, doc.Lines[i].EndTime, line.EndTime)
		assert.Equal(t, "tr:"+doc.Lines[i].Text, line.TranslatedText)
	}
	assert.Equal(t, 5, summary.Translated)
	assert.Zero(t, summary.Degraded())
}

func TestTranslate_EmptyDocument(t *testing.T) {
	p := echoProvider("remote")
	o := newTestOrchestrator(t, testOptions("remote"), []translator.Provider{p}, nil, nil)

	_, summary, err := o.Translate(context.Background(), &subtitle.File{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, p.callCount())
}

func TestTranslate_NameRoundTrip(t *testing.T) {
	registry := names.NewRegistry()
	registry.Add("李小龙", "Bruce Lee")

	doc := &subtitle.File{Lines: []subtitle.Line{
		{Index: 1, Text: "李小龙走进了房间"},
		{Index: 2, Text: "大家都看着李小龙"},
	}}

	// passes placeholders through untouched, like a compliant model
	p := echoProvider("remote")
	opts := testOptions("remote")
	opts.PreserveNames = true
	o := newTestOrchestrator(t, opts, []translator.Provider{p}, nil, registry)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	for _, line := range out.Lines {
		assert.Contains(t, line.TranslatedText, "Bruce Lee")
		assert.NotContains(t, line.TranslatedText, "{NM")
		assert.NotContains(t, line.TranslatedText, "李小龙")
	}
	assert.Zero(t, summary.NameLosses)
}

func TestTranslate_SecondRunIsServedFromCache(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(5)}
	p := echoProvider("remote")
	store := cache.NewMemoryStore()
	o := newTestOrchestrator(t, testOptions("remote"), []translator.Provider{p}, store, nil)

	first, s1, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)
	callsAfterFirst := p.callCount()
	require.Positive(t, callsAfterFirst)
	assert.Zero(t, s1.CacheHits)

	second, s2, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, p.callCount(), "second run must not reach the provider")
	assert.Zero(t, s2.ProviderCalls)
	assert.Equal(t, len(doc.Lines), s2.CacheHits)
	assert.Equal(t, translatedTexts(first), translatedTexts(second))
}

func TestTranslate_FallbackServesEveryBatchOnce(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(3)}
	primary := failingProvider("primary", translator.AuthFailure)
	secondary := echoProvider("secondary")

	opts := testOptions("primary", "secondary")
	opts.BatchSize = 1
	o := newTestOrchestrator(t, opts, []translator.Provider{primary, secondary}, nil, nil)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	// AuthFailure is fatal: one attempt per batch, no retries
	assert.Equal(t, 3, primary.callCount())
	assert.Equal(t, 3, secondary.callCount())
	assert.Zero(t, summary.Degraded())
	for i, line := range out.Lines {
		assert.Equal(t, "tr:"+doc.Lines[i].Text, line.TranslatedText)
	}
}

func TestTranslate_RetryBudgetIsMaxRetriesPlusOne(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(2)}
	flaky := failingProvider("flaky", translator.RateLimited)

	var backoffs int
	opts := testOptions("flaky")
	opts.MaxRetries = 2
	o := newTestOrchestrator(t, opts, []translator.Provider{flaky}, nil, nil)
	o.sleep = func(context.Context, time.Duration) error {
		backoffs++
		return nil
	}

	_, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 3, flaky.callCount())
	assert.Equal(t, 2, backoffs)
	assert.Equal(t, 2, summary.Degraded())
}

func TestTranslate_RecoversAfterRetryableFailure(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(2)}
	p := &fakeProvider{id: "flaky", serve: func(call int, texts []string) ([]string, error) {
		if call == 0 {
			return nil, translator.NewProviderError("flaky", translator.Timeout, "slow upstream")
		}
		out := make([]string, len(texts))
		for i, t := range texts {
			out[i] = "tr:" + t
		}
		return out, nil
	}}
	o := newTestOrchestrator(t, testOptions("flaky"), []translator.Provider{p}, nil, nil)

	_, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
	assert.Zero(t, summary.Degraded())
	assert.Equal(t, 2, summary.ProviderCalls)
}

func TestTranslate_FailedBatchDegradesToSourceText(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(3)}
	p := &fakeProvider{id: "local", serve: func(_ int, texts []string) ([]string, error) {
		for _, text := range texts {
			if strings.Contains(text, "c") {
				return nil, translator.NewProviderError("local", translator.Unavailable, "engine crashed")
			}
		}
		out := make([]string, len(texts))
		for i, t := range texts {
			out[i] = "tr:" + t
		}
		return out, nil
	}}
	o := newTestOrchestrator(t, testOptions("local"), []translator.Provider{p}, nil, nil)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, summary.DegradedLines)
	assert.Equal(t, 2, summary.Translated)
	assert.Equal(t, "tr:"+doc.Lines[0].Text, out.Lines[0].TranslatedText)
	assert.Equal(t, "tr:"+doc.Lines[1].Text, out.Lines[1].TranslatedText)
	assert.Equal(t, doc.Lines[2].Text, out.Lines[2].TranslatedText)
}

func TestTranslate_ContractViolationAbortsRun(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(4)}
	p := &fakeProvider{id: "broken", serve: func(_ int, texts []string) ([]string, error) {
		return texts[:len(texts)-1], nil
	}}
	o := newTestOrchestrator(t, testOptions("broken"), []translator.Provider{p}, nil, nil)

	_, _, err := o.Translate(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))
}

func TestTranslate_CancelledRunDegradesRemainder(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(6)}
	p := echoProvider("remote")
	o := newTestOrchestrator(t, testOptions("remote"), []translator.Provider{p}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, summary, err := o.Translate(ctx, doc)
	require.NoError(t, err)

	assert.Zero(t, p.callCount())
	assert.Equal(t, 6, summary.Degraded())
	for i, line := range out.Lines {
		assert.Equal(t, doc.Lines[i].Text, line.TranslatedText)
	}
}

func TestTranslate_InFlightBatchMergesAfterCancellation(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(4)}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := &fakeProvider{id: "remote", serve: func(_ int, texts []string) ([]string, error) {
		once.Do(func() { close(entered) })
		<-release
		out := make([]string, len(texts))
		for i, t := range texts {
			out[i] = "tr:" + t
		}
		return out, nil
	}}

	opts := testOptions("remote")
	opts.Concurrency = 1
	o := newTestOrchestrator(t, opts, []translator.Provider{p}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		out     *subtitle.File
		summary *Summary
		err     error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, summary, err = o.Translate(ctx, doc)
	}()

	// cancel while the first batch is blocked inside the provider,
	// then let it finish
	<-entered
	cancel()
	close(release)
	<-done

	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, 2, summary.Translated)
	assert.Equal(t, []int{3, 4}, summary.DegradedLines)
	assert.Equal(t, "tr:"+doc.Lines[0].Text, out.Lines[0].TranslatedText)
	assert.Equal(t, "tr:"+doc.Lines[1].Text, out.Lines[1].TranslatedText)
	assert.Equal(t, doc.Lines[2].Text, out.Lines[2].TranslatedText)
	assert.Equal(t, doc.Lines[3].Text, out.Lines[3].TranslatedText)
}

func TestTranslate_FailedProviderHitsStayOutOfSummary(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(2)}
	primary := failingProvider("primary", translator.AuthFailure)
	secondary := echoProvider("secondary")

	// the primary has one text cached but fails on the other, so the
	// batch falls through to the secondary
	store := cache.NewMemoryStore()
	lang := language.Vietnamese.String()
	require.NoError(t, store.Put(context.Background(),
		cache.NewKey(doc.Lines[0].Text, lang, "primary"), "stale"))

	o := newTestOrchestrator(t, testOptions("primary", "secondary"),
		[]translator.Provider{primary, secondary}, store, nil)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Zero(t, summary.CacheHits)
	assert.Zero(t, summary.Degraded())
	assert.Equal(t, "tr:"+doc.Lines[0].Text, out.Lines[0].TranslatedText)
}

func TestTranslate_ConcurrentBatchesLandInOrder(t *testing.T) {
	doc := &subtitle.File{Lines: makeLines(8)}
	p := echoProvider("remote")
	opts := testOptions("remote")
	opts.BatchSize = 1
	opts.Concurrency = 4
	o := newTestOrchestrator(t, opts, []translator.Provider{p}, nil, nil)

	out, summary, err := o.Translate(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, summary.Degraded())
	for i, line := range out.Lines {
		assert.Equal(t, "tr:"+doc.Lines[i].Text, line.TranslatedText)
	}
}
