package hybrid

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Options is the configuration surface of the orchestrator.
type Options struct {
	// ProviderChain is the ordered fallback chain of provider ids.
	// The first provider serves every batch until it fails fatally or
	// exhausts its retries.
	ProviderChain []string

	// BatchSize caps how many lines go into one provider call.
	BatchSize int

	// MaxRetries is the number of additional attempts after the first
	// one for retryable failures, per provider.
	MaxRetries int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration

	TargetLanguage language.Tag

	// PreserveNames turns the name placeholder transform on.
	PreserveNames bool

	// ContextHint is free text forwarded to providers that accept it.
	ContextHint string

	// Concurrency bounds how many batches are in flight at once.
	Concurrency int
}

func (o Options) validate() error {
	if len(o.ProviderChain) == 0 {
		return fmt.Errorf("provider chain is empty")
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0")
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if o.TargetLanguage == language.Und {
		return fmt.Errorf("target language is required")
	}
	return nil
}

func (o Options) backoff(attempt int) time.Duration {
	base := o.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return base << attempt
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return 1
	}
	return o.Concurrency
}
