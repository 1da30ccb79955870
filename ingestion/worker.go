// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/queue"
	"github.com/poiesic/docqa/storage"
)

// Worker consumes ingestion jobs: it reads the referenced file, computes an
// embedding, and upserts a searchable document keyed by the file path.
//
// Processing is idempotent: redelivering the same job overwrites the same
// indexed record instead of duplicating it.
type Worker struct {
	blobs     storage.BlobStore
	documents storage.DocumentRepository
	embedder  ai.Embedder
	inputType config.EmbeddingsInputType
	logger    *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker) error

// WithInputType selects what is sent to the embedding service:
// the file content (inline, the default) or the file path.
func WithInputType(inputType config.EmbeddingsInputType) WorkerOption {
	return func(w *Worker) error {
		if inputType != "" {
			w.inputType = inputType
		}
		return nil
	}
}

// WithWorkerLogger sets a custom logger.
// Default is slog.Default().
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWorker creates an embedding worker.
func NewWorker(blobs storage.BlobStore, documents storage.DocumentRepository, embedder ai.Embedder, opts ...WorkerOption) (*Worker, error) {
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	w := &Worker{
		blobs:     blobs,
		documents: documents,
		embedder:  embedder,
		inputType: config.InputTypeInline,
		logger:    slog.Default().With("component", "embedding-worker"),
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Process handles one delivered job. It satisfies queue.Handler.
//
// Failure classification:
//   - file missing at the referenced path: non-retryable, the job is
//     dead-lettered (the file will never reappear on its own)
//   - embedding service failure: retryable, the broker redelivers
//   - index write failure: retryable
func (w *Worker) Process(ctx context.Context, job *core.IngestionJob) error {
	w.logger.Info("processing ingestion job", "job", job.Id, "file", job.FileName, "attempts", job.Attempts)

	content, err := w.blobs.Read(ctx, job.FileName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return queue.NonRetryable(fmt.Errorf("file %s no longer present: %w", job.FileName, err))
		}
		return fmt.Errorf("reading %s: %w", job.FileName, err)
	}

	text := string(content)
	input := text
	if w.inputType == config.InputTypeFilePath {
		input = job.FileName
	}

	vector, err := w.embedder.EmbedText(ctx, input)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", job.FileName, err)
	}

	document := &core.Document{
		Path:    job.FileName,
		Content: text,
		Vector:  vector,
	}
	if _, err := w.documents.UpsertDocument(ctx, document); err != nil {
		return fmt.Errorf("indexing %s: %w", job.FileName, err)
	}

	w.logger.Info("indexed document", "file", job.FileName, "dims", len(vector))
	return nil
}
