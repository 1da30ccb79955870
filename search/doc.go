// Package search provides semantic retrieval over the document index and
// single-shot retrieval-augmented question answering.
//
// Searcher embeds a query and ranks indexed documents by cosine similarity,
// boosting verbatim matches. Answerer seeds a chat completion with the
// configured system prompt and the retrieved context to synthesize an
// answer; it never retries and never mutates conversation state.
package search
