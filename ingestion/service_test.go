package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/fileshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureQueue records enqueued jobs in order.
type captureQueue struct {
	jobs []*core.IngestionJob
	err  error
}

func (q *captureQueue) Enqueue(ctx context.Context, job *core.IngestionJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newTestService(t *testing.T) (*Service, *fileshare.Store, *captureQueue) {
	t.Helper()

	store, err := fileshare.NewStore(t.TempDir())
	require.NoError(t, err)

	q := &captureQueue{}
	service, err := NewService(store, q)
	require.NoError(t, err)

	return service, store, q
}

func TestIngest(t *testing.T) {
	service, store, q := newTestService(t)
	ctx := context.Background()

	path, err := service.Ingest(ctx, "notes.txt", strings.NewReader("the lighthouse"))
	require.NoError(t, err)

	// Bytes are durable before the job exists
	content, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "the lighthouse", string(content))

	require.Len(t, q.jobs, 1)
	assert.Equal(t, path, q.jobs[0].FileName)
	assert.NotEmpty(t, q.jobs[0].Id)
	assert.False(t, q.jobs[0].EnqueuedAt.IsZero())
}

func TestIngest_OneJobPerUpload(t *testing.T) {
	service, _, q := newTestService(t)
	ctx := context.Background()

	_, err := service.Ingest(ctx, "a.txt", strings.NewReader("alpha"))
	require.NoError(t, err)
	_, err = service.Ingest(ctx, "b.txt", strings.NewReader("beta"))
	require.NoError(t, err)

	require.Len(t, q.jobs, 2)
	assert.NotEqual(t, q.jobs[0].Id, q.jobs[1].Id)
}

func TestIngest_EmptyFile(t *testing.T) {
	service, _, q := newTestService(t)
	ctx := context.Background()

	_, err := service.Ingest(ctx, "", strings.NewReader("content"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = service.Ingest(ctx, "empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = service.Ingest(ctx, "nil.txt", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	// Rejected uploads never produce jobs
	assert.Empty(t, q.jobs)
}

func TestIngest_QueueFailure(t *testing.T) {
	store, err := fileshare.NewStore(t.TempDir())
	require.NoError(t, err)

	q := &captureQueue{err: errors.New("queue down")}
	service, err := NewService(store, q)
	require.NoError(t, err)

	_, err = service.Ingest(context.Background(), "doc.txt", strings.NewReader("content"))
	assert.ErrorContains(t, err, "queue down")
}

func TestNewService_Validation(t *testing.T) {
	store, err := fileshare.NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewService(nil, &captureQueue{})
	assert.Equal(t, ErrBlobStoreRequired, err)

	_, err = NewService(store, nil)
	assert.Equal(t, ErrQueueRequired, err)
}
