package hybrid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ddphuc01/dubbing-cli/internal/cache"
	"github.com/ddphuc01/dubbing-cli/internal/names"
	"github.com/ddphuc01/dubbing-cli/internal/subtitle"
	"github.com/ddphuc01/dubbing-cli/internal/translator"
	"github.com/ddphuc01/dubbing-cli/pkg/log"
)

// batchState tracks a batch through the per-batch state machine.
type batchState int

const (
	statePending batchState = iota // never dispatched (e.g. cancelled run)
	stateInFlight
	stateSuccess
	stateFailed // every provider in the chain exhausted
)

// attempt is the transient record of one provider call; it only
// informs retry/fallback decisions and logs, nothing persists it.
type attempt struct {
	provider string
	kind     translator.ErrorKind
	fatal    bool
	latency  time.Duration
}

type batchResult struct {
	state         batchState
	provider      string // the provider that served the batch
	translations  []string
	cacheHits     int
	providerCalls int
	nameLosses    int
	err           error // only set for contract violations
}

// Orchestrator runs a document through the provider fallback chain,
// batch by batch, with caching and name preservation wrapped around
// every provider call.
type Orchestrator struct {
	opts     Options
	chain    []translator.Provider
	cache    cache.Store
	registry *names.Registry

	// sleep is the retry backoff; injectable so tests do not wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an orchestrator over the given providers. Every id in
// the configured chain must resolve to a provider; an empty chain or
// an unknown id is a configuration error.
func New(opts Options, providers []translator.Provider, store cache.Store, registry *names.Registry) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator options: %w", err)
	}

	byID := make(map[string]translator.Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}

	chain := make([]translator.Provider, 0, len(opts.ProviderChain))
	for _, id := range opts.ProviderChain {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("provider chain references unknown provider %q", id)
		}
		chain = append(chain, p)
	}

	if opts.PreserveNames && registry == nil {
		return nil, fmt.Errorf("name preservation enabled but no registry given")
	}

	return &Orchestrator{
		opts:     opts,
		chain:    chain,
		cache:    store,
		registry: registry,
		sleep:    sleepCtx,
	}, nil
}

// Translate produces a translated copy of doc with the same line
// count and byte-identical timestamps. Provider failures degrade
// individual batches to source text and are reported in the summary;
// only contract violations abort the run.
func (o *Orchestrator) Translate(ctx context.Context, doc *subtitle.File) (*subtitle.File, *Summary, error) {
	start := time.Now()
	summary := &Summary{
		RunID:          uuid.NewString(),
		TargetLanguage: o.opts.TargetLanguage.String(),
		Total:          len(doc.Lines),
	}

	if len(doc.Lines) == 0 {
		summary.Elapsed = time.Since(start)
		return doc, summary, nil
	}

	if o.opts.PreserveNames {
		added := o.registry.Learn(doc.Texts())
		log.Info("Name registry: %d names (%d new from this document)", o.registry.Len(), added)
	}

	batches, err := Partition(doc.Lines, o.opts.BatchSize)
	if err != nil {
		return nil, nil, err
	}

	results := o.processBatches(ctx, batches)

	for _, result := range results {
		if result.err != nil {
			return nil, nil, result.err
		}
		summary.CacheHits += result.cacheHits
		summary.ProviderCalls += result.providerCalls
		summary.NameLosses += result.nameLosses
	}

	out, degraded, err := merge(doc, batches, results)
	if err != nil {
		return nil, nil, err
	}

	summary.DegradedLines = degraded
	summary.Translated = summary.Total - len(degraded)
	summary.Elapsed = time.Since(start)
	log.Info("%s", summary)
	return out, summary, nil
}

// processBatches runs the bounded worker pool. Cancellation stops
// dispatching immediately; batches already handed to a worker finish
// and their outcomes are still merged.
func (o *Orchestrator) processBatches(ctx context.Context, batches []Batch) []batchResult {
	results := make([]batchResult, len(batches))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range o.opts.concurrency() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.translateBatch(ctx, batches[idx])
			}
		}()
	}

dispatch:
	for i := range batches {
		select {
		case <-ctx.Done():
			log.Warn("Cancellation requested, %d of %d batches not dispatched", len(batches)-i, len(batches))
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// translateBatch walks the provider chain for one batch:
// PENDING → IN_FLIGHT → SUCCESS, or PROVIDER_FAILED per provider
// until the chain is exhausted and the batch ends FAILED.
func (o *Orchestrator) translateBatch(ctx context.Context, batch Batch) batchResult {
	result := batchResult{state: stateInFlight}

	// Name preprocessing happens once per batch, before any provider
	// sees the text; cache keys are computed over the rewritten text.
	work := batch.Texts()
	subs := make([][]names.Substitution, len(work))
	if o.opts.PreserveNames {
		for i, text := range work {
			work[i], subs[i] = o.registry.Preprocess(text)
		}
	}

	for _, provider := range o.chain {
		if ctx.Err() != nil {
			// cancelled mid-chain: no new provider work
			break
		}

		translations, err := o.tryProvider(ctx, provider, work, &result)
		if err == nil {
			if o.opts.PreserveNames {
				for i := range translations {
					var lost int
					translations[i], lost = o.registry.Postprocess(translations[i], subs[i])
					result.nameLosses += lost
				}
			}
			result.state = stateSuccess
			result.provider = provider.ID()
			result.translations = translations
			return result
		}

		if IsContractViolation(err) {
			result.err = err
			result.state = stateFailed
			return result
		}

		log.Warn("Provider %s failed for batch at %d (%d lines): %v; trying next provider",
			provider.ID(), batch.Start, len(batch.Lines), err)
	}

	// chain exhausted: the batch degrades to source text downstream
	result.state = stateFailed
	return result
}

// tryProvider serves one batch from one provider: cache hits are
// spliced in without a call, only misses reach TranslateBatch, and
// retryable failures are retried with exponential backoff up to the
// attempt ceiling (MaxRetries+1 attempts in total).
func (o *Orchestrator) tryProvider(ctx context.Context, provider translator.Provider, work []string, result *batchResult) ([]string, error) {
	lang := o.opts.TargetLanguage.String()
	out := make([]string, len(work))

	// hits are committed to the summary only if this provider ends up
	// serving the batch; a provider that fails after partial hits must
	// not inflate the count.
	hits := 0
	var missIdx []int
	for i, text := range work {
		if o.cache != nil {
			translated, hit, err := o.cache.Get(ctx, cache.NewKey(text, lang, provider.ID()))
			if err != nil {
				log.Warn("Cache lookup failed: %v", err)
			} else if hit {
				out[i] = translated
				hits++
				continue
			}
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		result.cacheHits += hits
		return out, nil
	}

	misses := make([]string, len(missIdx))
	for j, i := range missIdx {
		misses[j] = work[i]
	}

	// In-flight provider calls run on a detached context so a
	// cancelled run still merges their outcome; backoff sleeps do
	// respect cancellation and end the retry loop.
	callCtx := context.WithoutCancel(ctx)

	var translations []string
	for attemptNo := 0; ; attemptNo++ {
		result.providerCalls++
		start := time.Now()
		var err error
		translations, err = provider.TranslateBatch(callCtx, misses, lang)
		att := attempt{provider: provider.ID(), latency: time.Since(start)}
		if err == nil {
			log.Debug("Provider %s served %d texts in %s", att.provider, len(misses), att.latency)
			break
		}

		pe, ok := translator.AsProviderError(err)
		if ok {
			att.kind = pe.Kind
			att.fatal = !pe.Kind.Retryable()
		} else {
			att.fatal = true
		}

		if att.fatal || attemptNo >= o.opts.MaxRetries {
			return nil, err
		}

		delay := o.opts.backoff(attemptNo)
		log.Warn("Provider %s attempt %d failed (%s), retrying in %s", att.provider, attemptNo+1, att.kind, delay)
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return nil, err
		}
	}

	if len(translations) != len(misses) {
		return nil, &ContractViolationError{
			Provider: provider.ID(),
			Want:     len(misses),
			Got:      len(translations),
		}
	}

	result.cacheHits += hits

	// write-through before returning, so an identical later batch is
	// served without a provider call
	for j, i := range missIdx {
		out[i] = translations[j]
		if o.cache != nil {
			if err := o.cache.Put(ctx, cache.NewKey(misses[j], lang, provider.ID()), translations[j]); err != nil {
				log.Warn("Cache write failed: %v", err)
			}
		}
	}
	return out, nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
