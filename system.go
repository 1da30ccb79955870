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

package docqa

import (
	"context"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/assistant"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/queue"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/storage/fileshare"
)

// System wires the storage, queue, AI, and application layers together.
// It owns their lifecycles; Close releases everything in reverse order
// of construction.
type System struct {
	backend    *badger.Backend
	docRepo    storage.DocumentRepository
	convRepo   storage.ConversationRepository
	blobs      *fileshare.Store
	broker     *queue.Broker
	consumer   *queue.Consumer
	provider   ai.AIProvider
	ingester   *ingestion.Service
	searcher   *search.Searcher
	answerer   *search.Answerer
	assistants *assistant.Manager
	logger     *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	provider ai.AIProvider
}

// WithAIProvider substitutes the AI provider, primarily for tests.
func WithAIProvider(provider ai.AIProvider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// NewSystem builds the full system from configuration.
func NewSystem(cfg *config.Config, opts ...SystemOption) (*System, error) {
	options := &systemOptions{}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil {
		aiConfig := ai.NewConfig(
			ai.WithHost(cfg.AIHost),
			ai.WithToken(cfg.AIToken),
			ai.WithEmbeddingModel(cfg.EmbeddingModel),
			ai.WithChatModel(cfg.ChatModel),
		)
		var err error
		provider, err = openai.NewProvider(aiConfig)
		if err != nil {
			return nil, err
		}
	}

	backend, err := badger.OpenBackend(cfg.DBPath, false)
	if err != nil {
		provider.Close()
		return nil, err
	}

	system, err := assemble(cfg, backend, provider)
	if err != nil {
		backend.Close()
		provider.Close()
		return nil, err
	}
	return system, nil
}

// assemble builds everything above the backend and provider. Split out so
// the constructor's cleanup stays in one place.
func assemble(cfg *config.Config, backend *badger.Backend, provider ai.AIProvider) (*System, error) {
	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return nil, err
	}

	convRepo, err := badger.NewConversationRepository(backend)
	if err != nil {
		docRepo.Close()
		return nil, err
	}

	blobs, err := fileshare.NewStore(cfg.FileSharePath)
	if err != nil {
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	broker, err := queue.NewBroker(backend)
	if err != nil {
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	worker, err := ingestion.NewWorker(blobs, docRepo, provider.Embedder(),
		ingestion.WithInputType(cfg.EmbeddingsInputType))
	if err != nil {
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	consumer, err := queue.NewConsumer(broker, worker.Process,
		queue.WithPollInterval(cfg.QueuePollInterval),
		queue.WithMaxAttempts(cfg.QueueMaxAttempts),
		queue.WithRetryDelay(cfg.QueueRetryDelay))
	if err != nil {
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	ingester, err := ingestion.NewService(blobs, broker)
	if err != nil {
		consumer.Stop()
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(docRepo, provider.Embedder())
	if err != nil {
		consumer.Stop()
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	answerer, err := search.NewAnswerer(searcher, provider.Chatter(), cfg.SystemPrompt)
	if err != nil {
		consumer.Stop()
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	assistants, err := assistant.NewManager(convRepo, searcher, provider.Chatter())
	if err != nil {
		consumer.Stop()
		convRepo.Close()
		docRepo.Close()
		return nil, err
	}

	return &System{
		backend:    backend,
		docRepo:    docRepo,
		convRepo:   convRepo,
		blobs:      blobs,
		broker:     broker,
		consumer:   consumer,
		provider:   provider,
		ingester:   ingester,
		searcher:   searcher,
		answerer:   answerer,
		assistants: assistants,
		logger:     slog.Default(),
	}, nil
}

// Close shuts the system down: consumer first so no worker touches a
// closing repository, then the application pools, then storage.
func (s *System) Close() error {
	s.consumer.Stop()
	s.assistants.Release()

	if err := s.broker.Close(); err != nil {
		s.logger.Error("error closing queue broker", "err", err)
	}

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.convRepo.Close(); err != nil {
		s.logger.Error("error closing conversation repository", "err", err)
		return err
	}
	if err := s.docRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// StartConsumer begins background processing of queued embedding jobs.
func (s *System) StartConsumer(ctx context.Context) {
	s.consumer.Start(ctx)
}

func (s *System) DocumentRepository() storage.DocumentRepository {
	return s.docRepo
}

func (s *System) ConversationRepository() storage.ConversationRepository {
	return s.convRepo
}

func (s *System) BlobStore() *fileshare.Store {
	return s.blobs
}

func (s *System) Broker() *queue.Broker {
	return s.broker
}

func (s *System) Ingester() *ingestion.Service {
	return s.ingester
}

func (s *System) Searcher() *search.Searcher {
	return s.searcher
}

func (s *System) Answerer() *search.Answerer {
	return s.answerer
}

func (s *System) Assistants() *assistant.Manager {
	return s.assistants
}
