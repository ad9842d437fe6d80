package names

// Substitution records one name-to-placeholder replacement applied
// during preprocessing, so postprocessing can undo it.
type Substitution struct {
	Source      string // source-language name
	Placeholder string // opaque token inserted into the text
	Target      string // curated target rendering, empty if none
}

// Extractor finds candidate proper names across a document's texts.
// Implementations are locale-specific heuristics.
type Extractor interface {
	Extract(texts []string) []string
}
