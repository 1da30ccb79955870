// Package openai implements the ai service interfaces against
// OpenAI-compatible HTTP APIs (OpenAI, Azure OpenAI deployments, Ollama,
// vLLM, LocalAI) via langchaingo.
package openai
