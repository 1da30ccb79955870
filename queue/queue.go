package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docqa/core"
)

// Queue accepts ingestion jobs for deferred processing.
// Delivery is at least once: consumers must be idempotent.
type Queue interface {
	// Enqueue durably stores a job for later delivery. The job is
	// persisted before Enqueue returns.
	Enqueue(ctx context.Context, job *core.IngestionJob) error
}

// Handler processes a delivered job. Returning nil acknowledges the job.
// Returning an error wrapped with NonRetryable dead-letters the job;
// any other error triggers redelivery with backoff.
type Handler func(ctx context.Context, job *core.IngestionJob) error

var (
	// ErrQueueClosed indicates that the queue has been closed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrHandlerRequired is returned when a consumer is built without a handler.
	ErrHandlerRequired = errors.New("handler required")

	// ErrBrokerRequired is returned when a consumer is built without a broker.
	ErrBrokerRequired = errors.New("broker required")
)

// nonRetryableError marks a handler failure that must not be redelivered.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.err)
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}

// NonRetryable wraps err so the consumer dead-letters the job instead of
// redelivering it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *nonRetryableError
	return errors.As(err, &nre)
}
