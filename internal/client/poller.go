package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

const defaultPollInterval = 3 * time.Second

// ReloadFunc fetches a fresh job snapshot
type ReloadFunc func(ctx context.Context) ([]domain.Job, error)

// PollerConfig holds the poller's collaborators
type PollerConfig struct {
	Logger   *slog.Logger
	Reload   ReloadFunc
	OnJobs   func(jobs []domain.Job)
	Interval time.Duration
}

// Poller re-runs Reload on a fixed interval while any job is pending or
// running, and stops as soon as none is.
type Poller struct {
	logger   *slog.Logger
	reload   ReloadFunc
	onJobs   func([]domain.Job)
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	stop   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewPoller creates an idle poller. Call Sync with the current jobs to arm it.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.OnJobs == nil {
		cfg.OnJobs = func([]domain.Job) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		logger:   cfg.Logger,
		reload:   cfg.Reload,
		onJobs:   cfg.OnJobs,
		interval: cfg.Interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AnyActive reports whether at least one job is pending or running
func AnyActive(jobs []domain.Job) bool {
	for _, job := range jobs {
		if job.IsActive() {
			return true
		}
	}
	return false
}

// Sync starts the timer when jobs has active work and stops it otherwise
func (p *Poller) Sync(jobs []domain.Job) {
	active := AnyActive(jobs)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	switch {
	case active && p.stop == nil:
		p.stop = make(chan struct{})
		p.wg.Add(1)
		go p.run(p.stop)
		p.logger.Debug("Job polling started", slog.Duration("interval", p.interval))
	case !active && p.stop != nil:
		close(p.stop)
		p.stop = nil
		p.logger.Debug("Job polling stopped")
	}
}

// Active reports whether the timer is running
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Close stops the timer for good and waits for an in-flight reload to return
func (p *Poller) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Poller) run(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick(stop)
		}
	}
}

func (p *Poller) tick(stop <-chan struct{}) {
	jobs, err := p.reload(p.ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("Failed to reload jobs", slog.String("error", err.Error()))
		}
		return
	}

	// stopped while the reload was in flight
	select {
	case <-stop:
		return
	default:
	}

	p.onJobs(jobs)
	p.Sync(jobs)
}
