package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key addresses a cached translation by normalized source text,
// target language and the provider that produced it.
type Key struct {
	SourceText string
	TargetLang string
	Provider   string
}

// NewKey normalizes the source text before building the key, so
// whitespace and casing variants of the same line share one entry.
func NewKey(sourceText, targetLang, provider string) Key {
	return Key{
		SourceText: Normalize(sourceText),
		TargetLang: targetLang,
		Provider:   provider,
	}
}

// Hash returns the content address used as the storage key.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.SourceText))
	h.Write([]byte{0})
	h.Write([]byte(k.TargetLang))
	h.Write([]byte{0})
	h.Write([]byte(k.Provider))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize lowercases text and collapses runs of whitespace, so
// near-duplicate lines do not miss the cache.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Store is the translation cache. The cache is advisory: a miss is
// never an error, only a signal to call a provider. Implementations
// must be safe for concurrent use by batch workers; overwrites are
// last-writer-wins.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Put(ctx context.Context, key Key, translated string) error
}
