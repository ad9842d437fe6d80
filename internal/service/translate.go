package service

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ddphuc01/dubbing-cli/internal/hybrid"
	"github.com/ddphuc01/dubbing-cli/internal/jobs"
	"github.com/ddphuc01/dubbing-cli/internal/names"
	"github.com/ddphuc01/dubbing-cli/internal/subtitle"
	"github.com/ddphuc01/dubbing-cli/pkg/log"
)

// translateFile runs one subtitle through the orchestrator and writes
// the result next to the source. The name table is looked up near the
// subtitle first so per-series tables win over the global one.
func (s *Service) translateFile(ctx context.Context, payload jobs.Payload) error {
	if _, err := os.Stat(payload.SubtitleFile); err != nil {
		return WrapError(err, ErrFileNotFound, "subtitle file missing").
			WithContext("file", payload.SubtitleFile)
	}

	doc, err := subtitle.NewReader(payload.SubtitleFile).Read()
	if err != nil {
		return WrapError(err, ErrParse, "subtitle read failed").
			WithContext("file", payload.SubtitleFile)
	}

	registry := names.NewRegistry(names.HanExtractor{}, names.LatinExtractor{})
	sourceLang := doc.Language.String()
	registryPath := names.FindInAncestors(filepath.Dir(payload.SubtitleFile), sourceLang, payload.TargetLang)
	if registryPath == "" {
		registryPath = names.FilePath(s.cfg.DataDir, sourceLang, payload.TargetLang)
	}
	if err := registry.Load(registryPath); err != nil && !os.IsNotExist(err) {
		log.Warn("Name table %s unreadable, starting empty: %v", registryPath, err)
	}

	orchestrator, err := hybrid.New(s.orchestratorOptions(), s.providers, s.store, registry)
	if err != nil {
		return WrapError(err, ErrConfig, "orchestrator setup failed")
	}

	translated, summary, err := orchestrator.Translate(ctx, doc)
	if err != nil {
		return WrapError(err, ErrTranslation, "translation run failed").
			WithContext("file", payload.SubtitleFile)
	}
	if summary.Degraded() > 0 {
		log.Warn("%d of %d lines kept their source text in %s",
			summary.Degraded(), summary.Total, payload.SubtitleFile)
	}

	if err := subtitle.NewWriter().Write(payload.OutputFile, translated); err != nil {
		return WrapError(err, ErrFileWrite, "subtitle write failed").
			WithContext("file", payload.OutputFile)
	}

	// names learned during this run carry over to the next one
	if s.cfg.Translate.PreserveNames && registry.Len() > 0 {
		if err := registry.Save(registryPath); err != nil {
			log.Warn("Failed to save name table %s: %v", registryPath, err)
		}
	}
	return nil
}
