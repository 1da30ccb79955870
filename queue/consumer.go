package queue

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultMaxAttempts  = 5
	defaultRetryDelay   = 1 * time.Second
	defaultBatchSize    = 16
)

// Consumer polls the broker for due jobs and dispatches them to a worker
// pool. The broker owns the redelivery policy; the handler owns idempotency.
type Consumer struct {
	broker       *Broker
	handler      Handler
	pool         *ants.Pool
	pollInterval time.Duration
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stopped   chan struct{}
	done      chan struct{}
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) ConsumerOption {
	return func(c *Consumer) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithPollInterval sets how often the consumer checks for due jobs.
func WithPollInterval(interval time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if interval > 0 {
			c.pollInterval = interval
		}
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt cap. A job that still fails
// with a retryable error after this many deliveries is dead-lettered.
func WithMaxAttempts(max int) ConsumerOption {
	return func(c *Consumer) error {
		if max > 0 {
			c.maxAttempts = max
		}
		return nil
	}
}

// WithRetryDelay sets the base redelivery delay (doubles per attempt).
func WithRetryDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if delay > 0 {
			c.retryDelay = delay
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewConsumer creates a consumer bound to a broker and a handler.
func NewConsumer(broker *Broker, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		broker:       broker,
		handler:      handler,
		pool:         pool,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
		logger:       slog.Default().With("component", "queue-consumer"),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.pool.Release()
			return nil, optErr
		}
	}

	return c, nil
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
// It returns immediately; processing happens on background goroutines.
// Calling Start more than once has no effect.
func (c *Consumer) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run(ctx)
	})
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopped:
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// Stop halts polling and releases the worker pool. In-flight jobs finish;
// unacked jobs are redelivered on the next start.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if c.started.Load() {
			<-c.done
		}
		c.pool.Release()
	})
}

// poll claims due jobs and dispatches each one to the pool.
func (c *Consumer) poll(ctx context.Context) {
	deliveries, err := c.broker.dequeue(time.Now().UTC(), defaultBatchSize)
	if err != nil {
		c.logger.Error("error dequeuing jobs", "err", err)
		return
	}

	for _, d := range deliveries {
		d := d
		submitErr := c.pool.Submit(func() {
			c.process(ctx, d)
		})
		if submitErr != nil {
			c.logger.Error("error submitting job to pool", "job", d.job.Id, "err", submitErr)
			c.broker.release(d.job.Id)
		}
	}
}

// process runs the handler for one delivery and settles the job.
func (c *Consumer) process(ctx context.Context, d *delivery) {
	err := c.handler(ctx, d.job)
	if err == nil {
		if ackErr := c.broker.ack(d); ackErr != nil {
			c.logger.Error("error acking job", "job", d.job.Id, "err", ackErr)
		}
		return
	}

	if IsNonRetryable(err) {
		c.logger.Warn("dropping non-retryable job", "job", d.job.Id, "file", d.job.FileName, "err", err)
		if killErr := c.broker.kill(d); killErr != nil {
			c.logger.Error("error dead-lettering job", "job", d.job.Id, "err", killErr)
		}
		return
	}

	// Attempts counts deliveries already settled; this failure is one more.
	if d.job.Attempts+1 >= c.maxAttempts {
		c.logger.Warn("job exceeded max attempts", "job", d.job.Id, "attempts", d.job.Attempts+1, "err", err)
		if killErr := c.broker.kill(d); killErr != nil {
			c.logger.Error("error dead-lettering job", "job", d.job.Id, "err", killErr)
		}
		return
	}

	// Exponential backoff: retryDelay * 2^attempts
	delay := c.retryDelay
	for i := 0; i < d.job.Attempts; i++ {
		delay *= 2
	}

	c.logger.Info("job failed, scheduling redelivery", "job", d.job.Id, "attempts", d.job.Attempts+1, "delay", delay, "err", err)
	if nackErr := c.broker.nack(d, delay); nackErr != nil {
		c.logger.Error("error nacking job", "job", d.job.Id, "err", nackErr)
	}
}
