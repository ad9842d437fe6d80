package names

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/ddphuc01/dubbing-cli/pkg/log"
)

// Registry owns the name-mapping table: source-language names, their
// stable placeholder tokens and optional curated target renderings.
// It is safe for concurrent use by multiple batch workers and is
// always passed explicitly, never held as a package singleton.
type Registry struct {
	mu            sync.RWMutex
	targets       map[string]string // source name -> curated rendering ("" = none)
	placeholders  map[string]string // source name -> placeholder token
	byPlaceholder map[string]string // placeholder token -> source name
	extractors    []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{
		targets:       make(map[string]string),
		placeholders:  make(map[string]string),
		byPlaceholder: make(map[string]string),
		extractors:    extractors,
	}
}

// Add registers a name with an optional curated target rendering.
// Re-adding an existing name updates the rendering only.
func (r *Registry) Add(source, target string) {
	source = strings.TrimSpace(source)
	if source == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[source] = target
	if _, ok := r.placeholders[source]; !ok {
		ph := r.mintPlaceholderLocked(source)
		r.placeholders[source] = ph
		r.byPlaceholder[ph] = source
	}
}

// Learn runs the configured extractors over a document and registers
// every unseen candidate without a curated rendering.
func (r *Registry) Learn(texts []string) int {
	added := 0
	for _, ex := range r.extractors {
		for _, candidate := range ex.Extract(texts) {
			if r.Has(candidate) {
				continue
			}
			log.Debug("New name candidate: %s", candidate)
			r.Add(candidate, "")
			added++
		}
	}
	return added
}

func (r *Registry) Has(source string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[source]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// Snapshot returns the current source -> rendering table.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.targets))
	for k, v := range r.targets {
		out[k] = v
	}
	return out
}

// Preprocess replaces every registered name found in text with its
// placeholder token, longest name first so nested names cannot
// clobber each other. It returns the rewritten text and the applied
// substitutions.
func (r *Registry) Preprocess(text string) (string, []Substitution) {
	r.mu.RLock()
	sources := make([]string, 0, len(r.targets))
	for source := range r.targets {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if len(sources[i]) != len(sources[j]) {
			return len(sources[i]) > len(sources[j])
		}
		return sources[i] < sources[j]
	})

	var subs []Substitution
	rewritten := text
	for _, source := range sources {
		if !strings.Contains(rewritten, source) {
			continue
		}
		ph := r.placeholders[source]
		rewritten = strings.ReplaceAll(rewritten, source, ph)
		subs = append(subs, Substitution{
			Source:      source,
			Placeholder: ph,
			Target:      r.targets[source],
		})
	}
	r.mu.RUnlock()

	return rewritten, subs
}

// Postprocess replaces each placeholder in the translated text with
// the curated rendering, falling back to the original source name.
// A placeholder the provider did not preserve is logged and skipped;
// the returned count reports how many were lost. This is a recovered
// degradation, never an error.
func (r *Registry) Postprocess(translated string, subs []Substitution) (string, int) {
	lost := 0
	for _, sub := range subs {
		if !strings.Contains(translated, sub.Placeholder) {
			log.Warn("Placeholder for name %q did not survive translation", sub.Source)
			lost++
			continue
		}
		rendering := sub.Target
		if rendering == "" {
			rendering = sub.Source
		}
		translated = strings.ReplaceAll(translated, sub.Placeholder, rendering)
	}
	return translated, lost
}

// mintPlaceholderLocked derives a stable token from the name itself,
// so the same name yields the same placeholder across runs without a
// persisted counter. Collisions are resolved by salting.
func (r *Registry) mintPlaceholderLocked(source string) string {
	salt := 0
	for {
		h := fnv.New32a()
		h.Write([]byte(source))
		if salt > 0 {
			fmt.Fprintf(h, "#%d", salt)
		}
		ph := fmt.Sprintf("{NM%08X}", h.Sum32())
		if owner, ok := r.byPlaceholder[ph]; !ok || owner == source {
			return ph
		}
		salt++
	}
}
