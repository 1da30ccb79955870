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


package queue

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/badger"
)

// Key prefixes for queue records
const (
	jobPrefix        = "quejob"
	deadLetterPrefix = "quedlq"
	jobIDSeq         = "quejobseq"
)

// Broker is a BadgerDB-backed job queue with at-least-once delivery.
// Jobs survive process restarts; jobs claimed but never acknowledged are
// redelivered once the process comes back.
type Broker struct {
	backend *badger.Backend
	seq     *badgerdb.Sequence
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool // job IDs currently being processed
}

var _ Queue = (*Broker)(nil)

// NewBroker creates a broker on top of an open backend.
func NewBroker(backend *badger.Backend) (*Broker, error) {
	seq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}
	return &Broker{
		backend:  backend,
		seq:      seq,
		logger:   slog.Default().With("component", "queue"),
		inFlight: make(map[string]bool),
	}, nil
}

// Close releases the broker's sequence.
func (b *Broker) Close() error {
	return b.seq.Release()
}

// Enqueue durably stores a job for later delivery.
func (b *Broker) Enqueue(ctx context.Context, job *core.IngestionJob) error {
	if err := core.ValidateIngestionJob(job); err != nil {
		return err
	}

	return b.backend.WithTx(func(tx *badgerdb.Txn) error {
		seq, err := b.seq.Next()
		if err != nil {
			return err
		}

		if job.EnqueuedAt.IsZero() {
			job.EnqueuedAt = time.Now().UTC()
		}

		key := makeJobKey(seq)
		value := marshalEnvelope(time.Time{}, job)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// delivery is a claimed job together with its storage key.
type delivery struct {
	key []byte
	job *core.IngestionJob
}

// dequeue claims up to max jobs that are due for delivery at now.
// Claimed jobs stay in storage until acked; the in-flight set prevents the
// same process from delivering a job twice concurrently.
func (b *Broker) dequeue(now time.Time, max int) ([]*delivery, error) {
	var deliveries []*delivery

	err := b.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(deliveries) < max; iter.Next() {
			item := iter.Item()

			var (
				notBefore time.Time
				job       *core.IngestionJob
			)
			if err := item.Value(func(val []byte) error {
				var err error
				notBefore, job, err = unmarshalEnvelope(val)
				return err
			}); err != nil {
				return err
			}

			if !notBefore.IsZero() && now.Before(notBefore) {
				continue
			}

			b.mu.Lock()
			claimed := b.inFlight[job.Id]
			if !claimed {
				b.inFlight[job.Id] = true
			}
			b.mu.Unlock()
			if claimed {
				continue
			}

			deliveries = append(deliveries, &delivery{
				key: item.KeyCopy(nil),
				job: job,
			})
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// ack removes a successfully processed job.
func (b *Broker) ack(d *delivery) error {
	defer b.release(d.job.Id)
	return b.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Delete(d.key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// nack schedules a job for redelivery after the given delay, incrementing
// its attempt counter.
func (b *Broker) nack(d *delivery, delay time.Duration) error {
	defer b.release(d.job.Id)
	return b.backend.WithTx(func(tx *badgerdb.Txn) error {
		d.job.Attempts++
		notBefore := time.Now().UTC().Add(delay)
		if err := tx.Set(d.key, marshalEnvelope(notBefore, d.job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// kill moves a job to the dead-letter prefix. Dead-lettered jobs are kept
// for inspection but never redelivered.
func (b *Broker) kill(d *delivery) error {
	defer b.release(d.job.Id)
	return b.backend.WithTx(func(tx *badgerdb.Txn) error {
		dlqKey := makeDeadLetterKey(d.job.Id)
		if err := tx.Set(dlqKey, marshalEnvelope(time.Time{}, d.job)); err != nil {
			return err
		}
		if err := tx.Delete(d.key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeadLetters returns the jobs that were dropped as non-retryable.
func (b *Broker) DeadLetters(ctx context.Context) ([]*core.IngestionJob, error) {
	var jobs []*core.IngestionJob
	err := b.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(deadLetterPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				_, job, err := unmarshalEnvelope(val)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return jobs, err
}

// Pending returns the number of jobs waiting for delivery or redelivery.
func (b *Broker) Pending(ctx context.Context) (int, error) {
	count := 0
	err := b.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

func (b *Broker) release(jobID string) {
	b.mu.Lock()
	delete(b.inFlight, jobID)
	b.mu.Unlock()
}

// makeJobKey generates a FIFO-ordered key for a queued job.
func makeJobKey(seq uint64) []byte {
	prefix := []byte(jobPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian so lexicographic order equals enqueue order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeDeadLetterKey generates a key for a dead-lettered job.
func makeDeadLetterKey(jobID string) []byte {
	return append([]byte(deadLetterPrefix+":"), jobID...)
}

// marshalEnvelope serializes a job together with its redelivery bound.
func marshalEnvelope(notBefore time.Time, job *core.IngestionJob) []byte {
	var micro int64
	if !notBefore.IsZero() {
		micro = notBefore.UnixMicro()
	}
	buf := make([]byte, varint.Int64.Size(micro)+core.IngestionJobMUS.Size(*job))
	n := varint.Int64.Marshal(micro, buf)
	core.IngestionJobMUS.Marshal(*job, buf[n:])
	return buf
}

// unmarshalEnvelope deserializes a job envelope.
func unmarshalEnvelope(data []byte) (time.Time, *core.IngestionJob, error) {
	micro, n, err := varint.Int64.Unmarshal(data)
	if err != nil {
		return time.Time{}, nil, err
	}
	job, _, err := core.IngestionJobMUS.Unmarshal(data[n:])
	if err != nil {
		return time.Time{}, nil, err
	}
	var notBefore time.Time
	if micro != 0 {
		notBefore = time.UnixMicro(micro).UTC()
	}
	return notBefore, &job, nil
}
