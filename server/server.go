/*
 * Copyright 2025 Poiesic, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/docqa/assistant"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/search"
)

var (
	// ErrIngesterRequired is returned when an ingestion service is not provided.
	ErrIngesterRequired = errors.New("ingestion service required")

	// ErrAnswererRequired is returned when an answerer is not provided.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrAssistantsRequired is returned when an assistant manager is not provided.
	ErrAssistantsRequired = errors.New("assistant manager required")
)

const (
	defaultAddr         = ":8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 120 * time.Second
	shutdownGrace       = 5 * time.Second
)

// Server exposes the document question answering API over HTTP.
type Server struct {
	ingester   *ingestion.Service
	answerer   *search.Answerer
	assistants *assistant.Manager
	addr       string
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithAddr sets the listen address.
// Default is ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr != "" {
			s.addr = addr
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates the API server.
func NewServer(ingester *ingestion.Service, answerer *search.Answerer, assistants *assistant.Manager, opts ...Option) (*Server, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	if assistants == nil {
		return nil, ErrAssistantsRequired
	}

	s := &Server{
		ingester:   ingester,
		answerer:   answerer,
		assistants: assistants,
		addr:       defaultAddr,
		logger:     slog.Default().With("component", "server"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Handler builds the route table. Exposed separately from Start so tests
// can drive the mux through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /ask", s.handleAsk)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("PUT /chat/{assistantId}", s.handleChatCreate)
	mux.HandleFunc("POST /chat/{assistantId}", s.handleChatPost)
	mux.HandleFunc("GET /chat/{assistantId}", s.handleChatState)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.logRequests(mux)
}

// Start runs the server until ctx is cancelled, then drains in-flight
// requests within a short grace period.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down server", "err", err)
		}
	}()

	s.logger.Info("listening", "addr", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
