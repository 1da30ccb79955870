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
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/poiesic/docqa/assistant"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage"
)

const maxUploadMemory = 32 << 20

// answerResponse mirrors the wire shape used by every answer-bearing
// endpoint. Thoughts is a pointer so the chat endpoints can emit null
// while ask emits an empty string.
type answerResponse struct {
	DataPoints []string `json:"data_points"`
	Answer     string   `json:"answer"`
	Thoughts   *string  `json:"thoughts"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleUpload accepts multipart file uploads. Every file part is written
// to the share and queued for embedding; the response is only sent after
// each file is durably stored and enqueued.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	var headers []*multipart.FileHeader
	for _, fileHeaders := range r.MultipartForm.File {
		headers = append(headers, fileHeaders...)
	}
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no file in request")
		return
	}

	for _, header := range headers {
		if err := s.ingestOne(r, header); err != nil {
			if errors.Is(err, ingestion.ErrEmptyFile) {
				writeError(w, http.StatusBadRequest, "empty file: "+header.Filename)
				return
			}
			s.logger.Error("error ingesting upload", "file", header.Filename, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to process file")
			return
		}
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "Files processed successfully.",
	})
}

func (s *Server) ingestOne(r *http.Request, header *multipart.FileHeader) error {
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = s.ingester.Ingest(r.Context(), header.Filename, file)
	return err
}

// handleAsk answers a single-shot question. The question comes from the
// query string, or from a JSON body on POST.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" && r.Method == http.MethodPost {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			question = body.Question
		}
	}
	if question == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}

	result, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "question required")
			return
		}
		s.logger.Error("error answering question", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	thoughts := result.Thoughts
	writeJSON(w, http.StatusOK, answerResponse{
		DataPoints: result.DataPoints,
		Answer:     result.Answer,
		Thoughts:   &thoughts,
	})
}

// handleChatCreate establishes (or resets) a conversation.
func (s *Server) handleChatCreate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistantId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "assistantId required")
		return
	}

	if _, err := s.assistants.Create(r.Context(), id); err != nil {
		s.logger.Error("error creating conversation", "conversation", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"assistantId": id})
}

// handleChatPost appends a user message. The acknowledgement echoes the
// assistant id as a placeholder answer; the real reply is generated
// asynchronously and fetched by polling the GET endpoint.
func (s *Server) handleChatPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistantId")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if _, err := s.assistants.Post(r.Context(), id, body); err != nil {
		switch {
		case errors.Is(err, assistant.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "prompt required")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown conversation")
		default:
			s.logger.Error("error posting message", "conversation", id, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to post message")
		}
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		DataPoints: []string{},
		Answer:     id,
		Thoughts:   nil,
	})
}

// handleChatState returns the latest message at or before the optional
// timestampUTC query parameter (RFC 3339).
func (s *Server) handleChatState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistantId")

	var upTo time.Time
	if raw := r.URL.Query().Get("timestampUTC"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestampUTC")
			return
		}
		upTo = parsed.UTC()
	}

	message, err := s.assistants.State(r.Context(), id, upTo)
	if err != nil {
		if errors.Is(err, storage.ErrNoMessages) || errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no messages")
			return
		}
		s.logger.Error("error reading conversation state", "conversation", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read conversation")
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		DataPoints: []string{},
		Answer:     message.Content,
		Thoughts:   nil,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
