// Package ai defines the contracts for the external AI services docqa
// depends on: text embedding for semantic indexing and chat completion for
// answer generation. Implementations live in subpackages (openai for
// OpenAI-compatible APIs, mock for tests).
package ai
