// Package workers provides a bounded worker pool for concurrent operations in
// portscope. It supports job queuing, optional retries, and graceful shutdown
// that waits for in-flight jobs.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/portscope/internal/logging"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of jobs that can be queued.
	QueueSize int
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// ShutdownTimeout is how long Shutdown waits before cancelling the
	// context handed to running jobs.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            10,
		QueueSize:       100,
		MaxRetries:      0,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config     Config
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	startOnce  sync.Once
	submitMu   sync.RWMutex
	shutdown32 int32 // atomic shutdown flag
	logger     *logging.Logger
}

// New creates a new worker pool with the given configuration. Zero values
// are replaced by DefaultConfig values.
func New(config Config) *Pool {
	defaults := DefaultConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		results: make(chan Result, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.Default().WithComponent("workers"),
	}
}

// Config returns the effective pool configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Start launches the worker goroutines. Calling Start more than once has no
// additional effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
}

// Submit adds a job to the worker pool queue without blocking.
func (p *Pool) Submit(job Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if atomic.LoadInt32(&p.shutdown32) == 1 {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Results returns the channel on which job results are delivered. It is
// closed once Shutdown has waited for every worker to exit. Consumers must
// drain it until it is closed, otherwise workers block once QueueSize
// results are pending.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting jobs, lets workers finish the queued ones, and
// waits for them to exit. If they have not exited within ShutdownTimeout the
// job context is cancelled and Shutdown keeps waiting.
func (p *Pool) Shutdown() error {
	p.submitMu.Lock()
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		p.submitMu.Unlock()
		return nil
	}
	close(p.jobs)
	p.submitMu.Unlock()

	// Workers that were never started still need to release the queue.
	p.Start()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("Worker pool shutdown timeout, cancelling running jobs",
			"timeout", p.config.ShutdownTimeout)
		err = fmt.Errorf("worker pool shutdown timed out after %s", p.config.ShutdownTimeout)
		p.cancel()
		<-done
	}

	p.cancel()
	close(p.results)
	p.logger.Debug("Worker pool shutdown completed")
	return err
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.results <- p.execute(id, job)
	}
}

// execute runs a single job with retry logic.
func (p *Pool) execute(workerID int, job Job) Result {
	var (
		lastErr error
		retries int
		start   = time.Now()
	)

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		err := job.Execute(p.ctx)
		if err == nil {
			return Result{
				JobID:    job.ID(),
				JobType:  job.Type(),
				Duration: time.Since(start),
				Retries:  retries,
			}
		}

		lastErr = err
		retries = attempt

		if attempt < p.config.MaxRetries {
			p.logger.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"attempt", attempt+1,
				"max_retries", p.config.MaxRetries,
				"worker_id", workerID,
				"error", err)

			select {
			case <-time.After(p.config.RetryDelay):
			case <-p.ctx.Done():
				attempt = p.config.MaxRetries
			}
		}
	}

	p.logger.Debug("Job failed",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"retries", retries,
		"worker_id", workerID,
		"error", lastErr)

	return Result{
		JobID:    job.ID(),
		JobType:  job.Type(),
		Error:    lastErr,
		Duration: time.Since(start),
		Retries:  retries,
	}
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	id      string
	jobType string
	fn      func(ctx context.Context) error
}

// NewFuncJob creates a job that runs fn.
func NewFuncJob(id, jobType string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{id: id, jobType: jobType, fn: fn}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *FuncJob) Type() string {
	return j.jobType
}
