// Package app builds the long-lived services behind the process and serve
// commands from a loaded Config.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/classify"
	"github.com/JakeFAU/eu-innovation-monitor/internal/clock/system"
	"github.com/JakeFAU/eu-innovation-monitor/internal/config"
	"github.com/JakeFAU/eu-innovation-monitor/internal/dedupe"
	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/fetcher"
	collyfetcher "github.com/JakeFAU/eu-innovation-monitor/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/eu-innovation-monitor/internal/fetcher/headless"
	"github.com/JakeFAU/eu-innovation-monitor/internal/hash/sha256"
	"github.com/JakeFAU/eu-innovation-monitor/internal/headless/detector"
	"github.com/JakeFAU/eu-innovation-monitor/internal/id/uuid"
	"github.com/JakeFAU/eu-innovation-monitor/internal/pipeline"
	"github.com/JakeFAU/eu-innovation-monitor/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/eu-innovation-monitor/internal/publisher/memory"
	notify "github.com/JakeFAU/eu-innovation-monitor/internal/publisher/pubsub"
	"github.com/JakeFAU/eu-innovation-monitor/internal/shard"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage"
	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/postgres"
	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize"
	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize/gemini"
	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize/openai"
)

// Publisher backends.
const (
	PublisherNone   = "none"
	PublisherMemory = "memory"
	PublisherPubSub = "pubsub"
)

// App holds the services shared by the CLI commands.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Processor *pipeline.Processor
	Driver    *pipeline.Driver
	Writer    *shard.Writer
	IDs       *uuid.Generator
	// Index is nil when db.dsn is empty.
	Index *postgres.DocumentIndex

	closers []func() error
}

// New wires every collaborator described by cfg. Optional services (archive,
// index, publisher, headless browser, summary generator) are skipped when
// their config is empty. On error, anything already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, IDs: uuid.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	clock := system.New()
	writer, err := shard.New(cfg.Pipeline.OutputDir, clock)
	if err != nil {
		return nil, fmt.Errorf("init shard writer: %w", err)
	}
	a.Writer = writer

	classifier, err := classify.Load(cfg.Taxonomy.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	fetch, err := a.buildFetcher(cfg)
	if err != nil {
		return nil, err
	}

	generator, err := buildGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if generator == nil {
		logger.Info("no summary generator configured; summaries use the fallback")
	}

	deps := pipeline.Deps{
		Fetcher:    fetch,
		Classifier: classifier,
		Summarizer: summarize.New(generator, logger.Named("summarize")),
		Signer:     dedupe.NewSigner(sha256.New()),
		Writer:     writer,
		Clock:      clock,
		Logger:     logger,
	}

	archive, err := storage.Open(ctx, storage.Config{
		Backend:  cfg.Archive.Backend,
		LocalDir: cfg.Archive.LocalDir,
		Bucket:   cfg.Archive.GCSBucket,
		Prefix:   cfg.Archive.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if archive != nil {
		deps.Archive = archive
		a.closers = append(a.closers, archive.Close)
		logger.Info("raw HTML archive enabled", zap.String("backend", cfg.Archive.Backend))
	}

	if cfg.DB.DSN != "" {
		index, idxErr := postgres.NewDocumentIndex(ctx, postgres.IndexConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.ConnLifetime) * time.Minute,
		})
		if idxErr != nil {
			return nil, fmt.Errorf("open document index: %w", idxErr)
		}
		a.Index = index
		a.closers = append(a.closers, func() error { index.Close(); return nil })
		if cfg.DB.AutoMigrate {
			if err := index.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("migrate document index: %w", err)
			}
		}
		deps.Index = index
	}

	publisher, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	processor, err := pipeline.NewProcessor(deps, pipeline.Config{
		SourceID:      cfg.Pipeline.SourceID,
		Language:      cfg.Pipeline.Language,
		ArchivePrefix: cfg.Archive.Prefix,
		Topic:         cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("init processor: %w", err)
	}
	a.Processor = processor
	a.Driver = pipeline.NewDriver(processor, writer, clock, logger)
	return a, nil
}

func (a *App) buildFetcher(cfg config.Config) (document.Fetcher, error) {
	direct := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		AcceptLanguage: cfg.Fetch.AcceptLanguage,
		Timeout:        cfg.FetchTimeout(),
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
	})
	opts := fetcher.Options{
		Direct:    direct,
		JSDomains: cfg.Headless.JSDomains,
		Logger:    a.Logger,
	}
	if cfg.Headless.Enabled {
		browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			AcceptLanguage:    cfg.Fetch.AcceptLanguage,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay:       time.Duration(cfg.Headless.SettleMillis) * time.Millisecond,
			ExecPath:          cfg.Headless.ExecPath,
			NoSandbox:         cfg.Headless.NoSandbox,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error { browser.Close(); return nil })
		opts.Headless = browser
		if cfg.Headless.Promote {
			opts.Detector = detector.NewHeuristic(cfg.Headless.PromotionThresh)
		}
	}
	router, err := fetcher.NewRouter(opts)
	if err != nil {
		return nil, fmt.Errorf("init fetch router: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.PerHostRPS,
		DefaultBurst: cfg.Fetch.PerHostBurst,
	})
	return ratelimit.NewFetcher(router, limiter), nil
}

// buildGenerator returns nil when no provider is selected or the provider's
// key is missing; the summarizer then always falls back.
func buildGenerator(ctx context.Context, cfg config.Config) (summarize.Generator, error) {
	key := cfg.SummarizerAPIKey()
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	switch cfg.Summarizer.Provider {
	case config.ProviderOpenAI:
		client, err := openai.New(openai.Config{
			BaseURL:     cfg.Summarizer.BaseURL,
			APIKey:      key,
			Model:       cfg.Summarizer.Model,
			Temperature: cfg.Summarizer.Temperature,
			MaxTokens:   cfg.Summarizer.MaxTokens,
			Timeout:     cfg.SummarizerTimeout(),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("init openai generator: %w", err)
		}
		return client, nil
	case config.ProviderGemini:
		gen, err := gemini.New(ctx, gemini.Config{
			APIKey:      key,
			Model:       cfg.Summarizer.Model,
			Temperature: float32(cfg.Summarizer.Temperature),
			MaxTokens:   int32(cfg.Summarizer.MaxTokens), // #nosec G115 -- bounded by config
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini generator: %w", err)
		}
		return gen, nil
	default:
		return nil, nil
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (document.Publisher, error) {
	switch cfg.PubSub.Backend {
	case "", PublisherNone:
		return nil, nil
	case PublisherMemory:
		return memorypublisher.New(), nil
	case PublisherPubSub:
		client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		pub, err := notify.New(client, document.SchemaVersion)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.Logger.Info("record notifications enabled", zap.String("topic", cfg.PubSub.TopicName))
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown pubsub backend %q", cfg.PubSub.Backend)
	}
}

// Ready reports whether optional remote services are reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.Index == nil {
		return nil
	}
	return a.Index.Ping(ctx)
}

// Close releases services in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close service failed", zap.Error(err))
		}
	}
	a.closers = nil
}
