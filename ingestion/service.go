package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/queue"
	"github.com/poiesic/docqa/storage"
)

// Service accepts uploaded files, persists them to the blob store, and
// emits exactly one ingestion job per successful upload.
type Service struct {
	blobs  storage.BlobStore
	queue  queue.Queue
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithServiceLogger sets a custom logger.
// Default is slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates an upload ingestion service.
func NewService(blobs storage.BlobStore, q queue.Queue, opts ...ServiceOption) (*Service, error) {
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if q == nil {
		return nil, ErrQueueRequired
	}

	s := &Service{
		blobs:  blobs,
		queue:  q,
		logger: slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Ingest stores the uploaded file and enqueues an ingestion job referencing
// the written path. The blob write completes before the job is emitted; a
// storage failure means no job, so the queue never references missing bytes.
//
// An empty name or empty content is rejected with ErrEmptyFile.
func (s *Service) Ingest(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || r == nil {
		return "", ErrEmptyFile
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(content) == 0 {
		return "", ErrEmptyFile
	}

	// Write first; enqueue only after the bytes are durable.
	path, n, err := s.blobs.Write(ctx, name, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}

	job := &core.IngestionJob{
		Id:         uuid.NewString(),
		FileName:   path,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueuing ingestion job: %w", err)
	}

	s.logger.Info("ingested upload", "file", path, "bytes", n, "job", job.Id)
	return path, nil
}
