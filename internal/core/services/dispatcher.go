package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driving.Dispatcher = (*Dispatcher)(nil)

// Dispatcher runs a pool of workers that claim and execute tasks, plus a
// sweeper that reclaims tasks whose lease expired.
type Dispatcher struct {
	tasks *TaskService
	cfg   domain.WorkerSettings

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wakeCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher and registers it as the task service's waker.
func NewDispatcher(tasks *TaskService, cfg domain.WorkerSettings) *Dispatcher {
	defaults := domain.DefaultSettings().Worker
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaults.Lease
	}
	d := &Dispatcher{
		tasks:  tasks,
		cfg:    cfg,
		wakeCh: make(chan struct{}, cfg.Concurrency),
	}
	tasks.SetWaker(d.Wake)
	return d
}

// Start runs the workers. It blocks until ctx is cancelled or Stop is
// called, and returns once every in-flight task has been settled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	stopCh := d.stopCh
	d.mu.Unlock()

	logger.Info("dispatcher starting with %d workers", d.cfg.Concurrency)

	for i := range d.cfg.Concurrency {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx, stopCh, i)
		}()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweep(ctx, stopCh)
	}()

	select {
	case <-ctx.Done():
	case <-stopCh:
	}
	d.wg.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	logger.Info("dispatcher stopped")
	return ctx.Err()
}

// Stop signals the workers to finish their current task and exit.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running || d.stopCh == nil {
		d.mu.Unlock()
		return nil
	}
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Wake asks one idle worker to poll immediately.
func (d *Dispatcher) Wake() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

// work claims tasks until none are eligible, then idles until woken or the
// poll interval passes.
func (d *Dispatcher) work(ctx context.Context, stopCh <-chan struct{}, id int) {
	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		task, err := d.tasks.claim(ctx, "")
		if err != nil {
			logger.Warn("worker %d: %v", id, err)
		}
		if task != nil {
			d.tasks.execute(ctx, task)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-d.wakeCh:
		case <-timer.C:
		}
	}
}

// sweep reclaims expired leases every half lease.
func (d *Dispatcher) sweep(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(d.cfg.Lease / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			n, err := d.tasks.RecoverExpired(ctx)
			if err != nil {
				logger.Warn("lease sweep: %v", err)
			} else if n > 0 {
				logger.Info("lease sweep reclaimed %d tasks", n)
			}
		}
	}
}
