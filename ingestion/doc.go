// Package ingestion implements the upload half of the document pipeline.
//
// Service accepts an uploaded file, persists it to the blob store, and emits
// exactly one ingestion job once the bytes are durable (write-then-enqueue).
// Worker consumes those jobs asynchronously, computing an embedding for the
// referenced file and writing a searchable document to the retrieval index.
//
// The queue delivers at least once; Worker stays safe under redelivery
// because the index write is an upsert keyed by the file path.
package ingestion
