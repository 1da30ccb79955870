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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage/badger"
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// Queries the document index directly, without going through the HTTP API.
// Useful for checking what the embedding worker has indexed.
func main() {
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	backend, err := badger.OpenBackend(cfg.DBPath, false)
	if err != nil {
		panic(err)
	}
	defer backend.Close()

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		panic(err)
	}
	defer docRepo.Close()

	embedder, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithHost(cfg.AIHost),
		ai.WithToken(cfg.AIToken),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
	))
	if err != nil {
		panic(err)
	}

	searcher, err := search.NewSearcher(docRepo, embedder)
	if err != nil {
		panic(err)
	}

	query := "lighthouse"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}

	results, err := searcher.FindSimilar(context.Background(), query, 5)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: %s [%0.3f]\n", i, hit.Document.Path, hit.Score)
	}
}
