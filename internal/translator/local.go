package translator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Engine runs in-process-style sequence-to-sequence inference. The
// shipped implementation shells out to a local model runner; tests
// inject fakes.
type Engine interface {
	Infer(ctx context.Context, texts []string, targetLang string) ([]string, error)
	MaxBatchSize() int
}

// CommandEngine drives a local inference command through a
// line-oriented protocol: one input text per stdin line (inline
// newlines masked), one translation per stdout line.
type CommandEngine struct {
	Command  string
	Args     []string
	MaxBatch int
}

func (e *CommandEngine) MaxBatchSize() int {
	if e.MaxBatch <= 0 {
		return 16
	}
	return e.MaxBatch
}

func (e *CommandEngine) Infer(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	args := append(append([]string(nil), e.Args...), "--target-lang", targetLang)
	cmd := exec.CommandContext(ctx, e.Command, args...)

	var input strings.Builder
	for _, text := range texts {
		input.WriteString(strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder))
		input.WriteString("\n")
	}
	cmd.Stdin = strings.NewReader(input.String())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("inference command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseLineOutput(output)
}

// parseLineOutput splits engine stdout into one translation per
// line. Blank lines are kept as empty translations; dropping them
// would shift every following line out of alignment.
func parseLineOutput(output []byte) ([]string, error) {
	var results []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		results = append(results, strings.ReplaceAll(line, inlineBreakerPlaceholder, "\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inference output: %w", err)
	}
	return results, nil
}

// LocalProvider wraps a local inference engine. Engine failures are
// resource-level problems, not transient network conditions, so they
// surface as fatal Unavailable errors rather than retryable ones.
type LocalProvider struct {
	id     string
	engine Engine
}

func NewLocalProvider(id string, engine Engine) (*LocalProvider, error) {
	if id == "" {
		return nil, fmt.Errorf("local provider id is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("local provider %s: engine is required", id)
	}
	return &LocalProvider{id: id, engine: engine}, nil
}

func (p *LocalProvider) ID() string {
	return p.id
}

// TranslateBatch chunks the batch to the engine's maximum size and
// runs inference chunk by chunk, reassembling in order.
func (p *LocalProvider) TranslateBatch(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	maxBatch := p.engine.MaxBatchSize()
	translations := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		chunk, err := p.engine.Infer(ctx, texts[start:end], targetLang)
		if err != nil {
			return nil, WrapProviderError(p.id, Unavailable,
				fmt.Sprintf("inference failed for chunk %d-%d", start, end), err)
		}
		translations = append(translations, chunk...)
	}
	return translations, nil
}
