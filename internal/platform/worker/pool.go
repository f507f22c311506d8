package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
)

// Job is a unit of background work.
type Job struct {
	// ID is assigned by Submit when empty.
	ID string

	// Name identifies the kind of job in logs.
	Name string

	Run func(ctx context.Context) error
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Name identifies the pool for logging.
	Name string

	// Workers is the number of concurrent jobs.
	Workers int

	// QueueSize bounds the number of waiting jobs.
	QueueSize int

	// JobTimeout limits each job; zero means no limit.
	JobTimeout time.Duration

	// DrainTimeout is how long in-flight jobs may keep running after Run's
	// context is canceled; zero cancels them immediately.
	DrainTimeout time.Duration

	// QueueDepth, if set, tracks the number of waiting jobs.
	QueueDepth prometheus.Gauge

	// OnDone is called after every job with its result.
	OnDone func(job Job, err error, elapsed time.Duration)

	Logger *zerolog.Logger
}

// Pool runs submitted jobs on a fixed number of goroutines.
// Jobs are accepted between Open (or Run) and shutdown.
type Pool struct {
	cfg    PoolConfig
	queue  chan Job
	logger *zerolog.Logger

	mu      sync.RWMutex
	running bool
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	return &Pool{
		cfg:    cfg,
		queue:  make(chan Job, cfg.QueueSize),
		logger: getLogger(cfg.Logger),
	}
}

// Submit enqueues a job without blocking and returns its id.
func (p *Pool) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return "", errors.ErrPoolStopped
	}

	select {
	case p.queue <- job:
		p.trackDepth()

		return job.ID, nil
	default:
		return "", fmt.Errorf("%w: %d jobs waiting", errors.ErrQueueFull, len(p.queue))
	}
}

// Open makes the pool accept jobs before Run starts the workers, so callers
// can start producers without racing Run.
func (p *Pool) Open() {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
}

// Run starts the workers and blocks until ctx is canceled and in-flight jobs
// return. Jobs run on a context detached from ctx so a shutdown lets them
// finish within DrainTimeout. Jobs still queued at shutdown are dropped.
func (p *Pool) Run(ctx context.Context) error {
	p.Open()

	p.logger.Info().Str(logFieldWorker, p.cfg.Name).Int("workers", p.cfg.Workers).Msg("starting worker pool")

	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			p.loop(ctx, jobCtx)
		}()
	}

	<-ctx.Done()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.drain(&wg, cancelJobs)

	if dropped := len(p.queue); dropped > 0 {
		p.logger.Warn().Str(logFieldWorker, p.cfg.Name).Int("dropped", dropped).Msg("dropping queued jobs on shutdown")
	}

	p.logger.Info().Str(logFieldWorker, p.cfg.Name).Msg("worker pool stopped")

	return fmt.Errorf("worker pool %s: %w", p.cfg.Name, ctx.Err())
}

func (p *Pool) drain(wg *sync.WaitGroup, cancelJobs context.CancelFunc) {
	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	if p.cfg.DrainTimeout <= 0 {
		cancelJobs()
		<-done

		return
	}

	timer := time.NewTimer(p.cfg.DrainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.logger.Warn().Str(logFieldWorker, p.cfg.Name).Dur("drain_timeout", p.cfg.DrainTimeout).Msg("canceling in-flight jobs")
		cancelJobs()
		<-done
	}
}

func (p *Pool) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.trackDepth()
			p.execute(jobCtx, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, job Job) {
	start := time.Now()
	logger := p.logger.With().Str(logFieldJob, job.ID).Str(logFieldName, job.Name).Logger()

	logger.Info().Msg("job started")

	err := p.runSafely(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
	} else {
		logger.Info().Dur("elapsed", elapsed).Msg("job finished")
	}

	if p.cfg.OnDone != nil {
		p.cfg.OnDone(job, err, elapsed)
	}
}

func (p *Pool) runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()

	return RunWithTimeout(ctx, p.cfg.JobTimeout, job.Run)
}

func (p *Pool) trackDepth() {
	if p.cfg.QueueDepth != nil {
		p.cfg.QueueDepth.Set(float64(len(p.queue)))
	}
}
