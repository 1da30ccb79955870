// Package server exposes the HTTP API: multipart document upload,
// single-shot question answering, and the polling chat endpoints.
//
// The upload endpoint only acknowledges after every file is written to
// the share and queued for embedding. Chat posts acknowledge immediately
// with a placeholder answer; clients poll the GET endpoint with an
// optional timestampUTC bound until the assistant reply appears.
package server
