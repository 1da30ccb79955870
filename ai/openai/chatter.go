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


package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Chatter implements ai.Chatter using OpenAI-compatible chat APIs.
type Chatter struct {
	client llms.Model
	logger *slog.Logger
}

// newChatter is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatter(config *ai.Config) (*Chatter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Chatter{
		client: client,
		logger: slog.Default().With("component", "openai-chatter"),
	}, nil
}

// NewChatter creates a new chatter using the provided configuration.
//
// Returns ai.Chatter interface to enforce abstraction.
func NewChatter(config *ai.Config) (ai.Chatter, error) {
	return newChatter(config)
}

// Chat generates a reply to the final user turn, seeded with the given
// system instructions.
func (c *Chatter) Chat(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
	content := make([]llms.MessageContent, 0, len(turns)+1)

	if instructions != "" {
		content = append(content, llms.MessageContent{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(instructions),
			},
		})
	}

	for _, turn := range turns {
		role := llms.ChatMessageTypeAI
		if turn.FromUser {
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.MessageContent{
			Role: role,
			Parts: []llms.ContentPart{
				llms.TextPart(turn.Content),
			},
		})
	}

	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		c.logger.Error("failed to generate content", "turns", len(turns), "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		c.logger.Debug("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
