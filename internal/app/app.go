// Package app wires the sync service together and runs it.
//
// A single process serves everything:
//   - HTTP server: webhooks, liveness and metrics
//   - worker pool: background conversation syncs
//   - temp janitor: sweeps scratch files left by crashed jobs
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/chatwoot"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/pipedrive"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/transcribe"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/output/transcript"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/config"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/tempfs"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/worker"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/crmsync"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/enrich"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/webhook"
)

const (
	poolName             = "sync"
	uploadMaxRetries     = 2
	msgJanitorStopped    = "temp janitor stopped"
	msgPoolStopped       = "worker pool stopped"
	msgHTTPServerStopped = "http server stopped"

	jobStatusSuccess = "success"
	jobStatusFailed  = "failed"
	jobStatusTimeout = "timeout"
)

// App holds the application dependencies.
type App struct {
	cfg     *config.Config
	logger  *zerolog.Logger
	pool    *worker.Pool
	server  *observability.Server
	janitor *tempfs.Janitor
}

// New builds every component from the configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	temp, err := tempfs.New(cfg.TempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}

	janitor, err := tempfs.NewJanitor(temp, cfg.TempSweepInterval, cfg.TempMaxAge, logger)
	if err != nil {
		return nil, fmt.Errorf("temp janitor: %w", err)
	}

	chatwootClient := chatwoot.New(chatwoot.Config{
		BaseURL:  cfg.ChatwootBaseURL,
		APIToken: cfg.ChatwootAPIToken,
	}, logger)

	paginator := chatwoot.NewPaginator(chatwootClient, cfg.ChatwootMaxPages, cfg.ChatwootPageDelay, logger)

	crm := pipedrive.New(pipedrive.Config{
		BaseURL:          cfg.PipedriveBaseURL,
		APIToken:         cfg.PipedriveAPIToken,
		DealStageID:      cfg.PipedriveDealStageID,
		FieldCase:        cfg.PipedriveFieldCase,
		FieldNationalID:  cfg.PipedriveFieldNationalID,
		FieldProfession:  cfg.PipedriveFieldProfession,
		UploadMaxRetries: uploadMaxRetries,
	}, logger)

	downloader := media.NewDownloader(media.DownloaderConfig{
		Timeout:    cfg.MediaDownloadTimeout,
		MaxRetries: cfg.MediaMaxRetries,
		Auth:       chatwootClient,
	}, logger)

	deps := enrich.Deps{
		Downloader: downloader,
		Transcoder: enrich.FFmpeg{Path: cfg.FFmpegPath},
		TempDir:    temp,
	}

	if cfg.OpenAIAPIKey != "" {
		deps.Transcriber = transcribe.NewOpenAI(transcribe.Config{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.TranscriptionModel,
			Language:   cfg.TranscriptionLanguage,
			Timeout:    cfg.TranscriptionTimeout,
			MaxRetries: cfg.TranscriptionRetries,
		}, logger)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, audio will not be transcribed")
	}

	enricher := enrich.New(deps, cfg.MediaConcurrency, logger)
	assembler := transcript.NewAssembler(cfg.Location())

	syncer := crmsync.New(cfg, paginator, chatwootClient, crm, enricher, assembler, logger)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		janitor: janitor,
	}

	a.pool = worker.NewPool(worker.PoolConfig{
		Name:         poolName,
		Workers:      cfg.WorkerCount,
		QueueSize:    cfg.WorkerQueueSize,
		JobTimeout:   cfg.SyncTimeout,
		DrainTimeout: cfg.DrainTimeout,
		QueueDepth:   observability.SyncQueueDepth,
		OnDone:       recordJob,
		Logger:       logger,
	})

	handler := webhook.NewHandler(cfg, syncer, a.pool, logger)
	a.server = observability.NewServer(cfg.HTTPPort, handler, logger)

	return a, nil
}

// Run starts the pool, the janitor and the HTTP server and blocks until ctx
// is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	// Webhooks may arrive as soon as the server listens.
	a.pool.Open()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return stopped(a.pool.Run(ctx), a.logger, msgPoolStopped)
	})

	g.Go(func() error {
		return stopped(a.janitor.Run(ctx), a.logger, msgJanitorStopped)
	})

	g.Go(func() error {
		return stopped(a.server.Start(ctx), a.logger, msgHTTPServerStopped)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	return nil
}

// stopped treats cancellation as a clean stop.
func stopped(err error, logger *zerolog.Logger, msg string) error {
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info().Msg(msg)

		return nil
	}

	return err
}

// recordJob feeds the sync job metrics from pool results, panics included.
func recordJob(_ worker.Job, err error, elapsed time.Duration) {
	observability.SyncJobs.WithLabelValues(jobStatus(err)).Inc()
	observability.SyncDurationSeconds.Observe(elapsed.Seconds())
}

func jobStatus(err error) string {
	switch {
	case err == nil:
		return jobStatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return jobStatusTimeout
	default:
		return jobStatusFailed
	}
}
