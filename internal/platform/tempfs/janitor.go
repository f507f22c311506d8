package tempfs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/worker"
)

const janitorJobName = "temp-sweep"

// Janitor periodically sweeps stale scratch files.
type Janitor struct {
	dir       *Dir
	maxAge    time.Duration
	scheduler gocron.Scheduler
	logger    *zerolog.Logger
}

func NewJanitor(dir *Dir, interval, maxAge time.Duration, logger *zerolog.Logger) (*Janitor, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newGocronLogger(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	j := &Janitor{
		dir:       dir,
		maxAge:    maxAge,
		scheduler: s,
		logger:    logger,
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
		gocron.WithName(janitorJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", janitorJobName, err)
	}

	return j, nil
}

// Run starts the scheduler and blocks until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) error {
	j.scheduler.Start()
	j.logger.Info().Str("dir", j.dir.Root()).Dur("max_age", j.maxAge).Msg("temp janitor started")

	<-ctx.Done()

	if err := j.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}

	return fmt.Errorf("temp janitor: %w", ctx.Err())
}

func (j *Janitor) sweep() {
	defer worker.RecoverPanic(j.logger, janitorJobName)

	removed, err := j.dir.Sweep(j.maxAge)
	if err != nil {
		j.logger.Error().Err(err).Msg("temp sweep failed")

		return
	}

	if removed > 0 {
		observability.TempFilesSwept.Add(float64(removed))
		j.logger.Info().Int("removed", removed).Msg("swept stale temp files")
	}
}

// gocronLogger adapts zerolog to gocron.Logger.
type gocronLogger struct {
	logger *zerolog.Logger
}

//nolint:ireturn // Interface return is required by gocron's API contract
func newGocronLogger(logger *zerolog.Logger) gocron.Logger {
	return &gocronLogger{logger: logger}
}

func (l *gocronLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(args).Msg(msg)
}

func (l *gocronLogger) Error(msg string, args ...any) {
	l.logger.Error().Fields(args).Msg(msg)
}

func (l *gocronLogger) Info(msg string, args ...any) {
	l.logger.Info().Fields(args).Msg(msg)
}

func (l *gocronLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(args).Msg(msg)
}
