// Package queue provides the job queue connecting upload ingestion to the
// embedding worker.
//
// The Broker persists jobs in BadgerDB so an acknowledged enqueue survives a
// process restart. Delivery is at least once: a job claimed by a consumer
// that crashes before acking is redelivered. Handlers classify failures by
// wrapping errors with NonRetryable; everything else is redelivered with
// exponential backoff until the attempt cap dead-letters the job.
package queue
