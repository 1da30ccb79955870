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
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/queue"
	"github.com/poiesic/docqa/server"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docqa",
		Usage: "Document question answering over uploaded files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to an env file loaded before reading configuration",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the embedding worker",
				Action: serveCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-enqueue every stored file for embedding",
				Action: reindexCommand,
			},
			{
				Name:   "dead-letters",
				Usage:  "List ingestion jobs that were dropped after repeated failures",
				Action: deadLettersCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	system, err := docqa.NewSystem(cfg)
	if err != nil {
		return fmt.Errorf("failed to build system: %w", err)
	}
	defer system.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	system.StartConsumer(ctx)

	srv, err := server.NewServer(
		system.Ingester(),
		system.Answerer(),
		system.Assistants(),
		server.WithAddr(cfg.Addr),
	)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	return srv.Start(ctx)
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	backend, err := badger.OpenBackend(cfg.DBPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	broker, err := queue.NewBroker(backend)
	if err != nil {
		return fmt.Errorf("failed to create queue broker: %w", err)
	}
	defer broker.Close()

	entries, err := os.ReadDir(cfg.FileSharePath)
	if err != nil {
		return fmt.Errorf("failed to read file share: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		job := &core.IngestionJob{
			Id:         uuid.NewString(),
			FileName:   filepath.Join(cfg.FileSharePath, entry.Name()),
			EnqueuedAt: time.Now().UTC(),
		}
		if err := broker.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", entry.Name(), err)
		}
		count++
	}

	fmt.Fprintf(os.Stderr, "Enqueued %d files for embedding\n", count)
	return nil
}

func deadLettersCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	backend, err := badger.OpenBackend(cfg.DBPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	broker, err := queue.NewBroker(backend)
	if err != nil {
		return fmt.Errorf("failed to create queue broker: %w", err)
	}
	defer broker.Close()

	jobs, err := broker.DeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(os.Stderr, "No dead-lettered jobs")
		return nil
	}
	for _, job := range jobs {
		fmt.Printf("%s\t%s\tattempts=%d\tenqueued=%s\n",
			job.Id, job.FileName, job.Attempts, job.EnqueuedAt.Format(time.RFC3339))
	}
	return nil
}

// loadConfig loads the optional env file, then reads configuration from
// the environment. A missing env file is not an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	envFile := c.String("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
