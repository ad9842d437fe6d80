package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ddphuc01/dubbing-cli/internal/cache"
	"github.com/ddphuc01/dubbing-cli/internal/config"
	"github.com/ddphuc01/dubbing-cli/internal/hybrid"
	"github.com/ddphuc01/dubbing-cli/internal/jobs"
	"github.com/ddphuc01/dubbing-cli/internal/translator"
	"github.com/ddphuc01/dubbing-cli/pkg/file"
	"github.com/ddphuc01/dubbing-cli/pkg/log"
)

// Service scans media directories for subtitles that lack a
// translated sibling and feeds them through the job queue into the
// orchestrator. Scans overlap-protect each other via singleflight,
// so a slow run and the next cron tick never race.
type Service struct {
	cfg       *config.Config
	queue     *jobs.Queue
	cron      *cron.Cron
	store     cache.Store
	providers []translator.Provider

	// translate runs one job; swapped out in tests.
	translate func(ctx context.Context, payload jobs.Payload) error

	group singleflight.Group
}

func New(cfg *config.Config, queue *jobs.Queue, c *cron.Cron, store cache.Store) (*Service, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		queue:     queue,
		cron:      c,
		store:     store,
		providers: providers,
	}
	s.translate = s.translateFile
	return s, nil
}

// buildProviders instantiates every provider the configured chain
// references, in chain order.
func buildProviders(cfg *config.Config) ([]translator.Provider, error) {
	providers := make([]translator.Provider, 0, len(cfg.Translate.ProviderChain))
	for _, id := range cfg.Translate.ProviderChain {
		switch id {
		case "remote":
			p, err := translator.NewRemoteProvider(translator.RemoteConfig{
				Name:        id,
				APIURL:      cfg.LLM.APIURL,
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
				Timeout:     time.Duration(cfg.LLM.Timeout) * time.Second,
				ContextHint: cfg.Translate.ContextHint,
			})
			if err != nil {
				return nil, WrapError(err, ErrConfig, "remote provider setup failed")
			}
			providers = append(providers, p)
		case "local":
			parts := strings.Fields(cfg.Local.ModelCmd)
			if len(parts) == 0 {
				return nil, NewError(ErrConfig, "local provider requires a model command")
			}
			engine := &translator.CommandEngine{
				Command:  parts[0],
				Args:     parts[1:],
				MaxBatch: cfg.Local.MaxBatch,
			}
			p, err := translator.NewLocalProvider(id, engine)
			if err != nil {
				return nil, WrapError(err, ErrConfig, "local provider setup failed")
			}
			providers = append(providers, p)
		default:
			return nil, NewError(ErrConfig, fmt.Sprintf("unknown provider %q", id))
		}
	}
	return providers, nil
}

func (s *Service) orchestratorOptions() hybrid.Options {
	return hybrid.Options{
		ProviderChain:  s.cfg.Translate.ProviderChain,
		BatchSize:      s.cfg.Translate.BatchSize,
		MaxRetries:     s.cfg.Translate.MaxRetries,
		BackoffBase:    s.cfg.Translate.BackoffBase,
		TargetLanguage: s.cfg.Translate.TargetLanguage,
		PreserveNames:  s.cfg.Translate.PreserveNames,
		ContextHint:    s.cfg.Translate.ContextHint,
		Concurrency:    s.cfg.Translate.Concurrency,
	}
}

// Schedule registers the scan on the cron schedule and starts the
// queue workers. The caller owns cron.Start and ctx lifetime.
func (s *Service) Schedule(ctx context.Context) error {
	log.Info("Scheduling scans: %s", s.cfg.Media.CronExpr)

	s.queue.Start(s.execute)

	runFunc := func() {
		_, _, _ = s.group.Do("scan", func() (any, error) {
			s.ScanAll(ctx)
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.cfg.Media.CronExpr, runFunc)
	return err
}

func (s *Service) Stop() {
	s.queue.Stop()
}

// ScanAll walks every configured media directory once, returning how
// many translation jobs were enqueued.
func (s *Service) ScanAll(ctx context.Context) int {
	enqueued := 0
	for _, dir := range s.cfg.Media.Dirs {
		n, err := s.scanDir(ctx, dir)
		if err != nil {
			log.Error("Scan of %s failed: %v", dir, err)
			continue
		}
		enqueued += n
	}
	log.Info("Scan complete: %d jobs enqueued", enqueued)
	return enqueued
}

func (s *Service) scanDir(ctx context.Context, dir string) (int, error) {
	subtitles, err := file.FindByExt(dir, ".srt")
	if err != nil {
		return 0, WrapError(err, ErrFileRead, "media directory walk failed").WithContext("dir", dir)
	}

	lang := s.targetCode()
	enqueued := 0
	for _, path := range subtitles {
		if ctx.Err() != nil {
			return enqueued, ctx.Err()
		}
		if file.HasLangSuffix(path, lang) {
			// already an output of a previous run
			continue
		}
		output := file.InsertLangSuffix(path, lang)
		if _, err := os.Stat(output); err == nil {
			continue
		}

		_, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "scan",
			DedupeKey: path,
			Payload: jobs.Payload{
				SubtitleFile: path,
				TargetLang:   lang,
				OutputFile:   output,
			},
		})
		if created {
			enqueued++
		}
	}
	return enqueued, nil
}

// TranslateOnce translates a single subtitle file synchronously,
// bypassing the queue. Used by one-shot mode.
func (s *Service) TranslateOnce(ctx context.Context, path string) error {
	lang := s.targetCode()
	return s.translate(ctx, jobs.Payload{
		SubtitleFile: path,
		TargetLang:   lang,
		OutputFile:   file.InsertLangSuffix(path, lang),
	})
}

func (s *Service) execute(ctx context.Context, job *jobs.Job) error {
	log.Info("Translating %s to %s", job.Payload.SubtitleFile, job.Payload.TargetLang)
	return s.translate(ctx, job.Payload)
}

func (s *Service) targetCode() string {
	base, _ := s.cfg.Translate.TargetLanguage.Base()
	return base.String()
}
