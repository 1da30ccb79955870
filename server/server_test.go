package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/assistant"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/storage/fileshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireAnswer decodes answer-bearing responses; Thoughts stays a pointer to
// tell null apart from an empty string.
type wireAnswer struct {
	DataPoints []string `json:"data_points"`
	Answer     string   `json:"answer"`
	Thoughts   *string  `json:"thoughts"`
}

type captureQueue struct {
	jobs []*core.IngestionJob
}

func (q *captureQueue) Enqueue(ctx context.Context, job *core.IngestionJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type serverFixture struct {
	handler http.Handler
	store   *fileshare.Store
	queue   *captureQueue
	chatter *mock.MockChatter
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	store, err := fileshare.NewStore(t.TempDir())
	require.NoError(t, err)

	docRepo, convRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		convRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	q := &captureQueue{}
	ingester, err := ingestion.NewService(store, q)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	searcher, err := search.NewSearcher(docRepo, embedder)
	require.NoError(t, err)

	chatter := mock.NewMockChatter()
	answerer, err := search.NewAnswerer(searcher, chatter, "Answer from the context only.")
	require.NoError(t, err)

	assistants, err := assistant.NewManager(convRepo, searcher, chatter)
	require.NoError(t, err)
	t.Cleanup(assistants.Release)

	srv, err := NewServer(ingester, answerer, assistants)
	require.NoError(t, err)

	return &serverFixture{handler: srv.Handler(), store: store, queue: q, chatter: chatter}
}

func (f *serverFixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUpload(t *testing.T) {
	f := newServerFixture(t)

	body, contentType := multipartBody(t, map[string]string{
		"lighthouse.txt": "the lighthouse was built in 1872",
	})
	rec := f.do(t, http.MethodPost, "/upload", body, contentType)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Files processed successfully.", resp.Message)

	// The file is durable and exactly one job was queued before the response
	require.Len(t, f.queue.jobs, 1)
	content, err := f.store.Read(context.Background(), f.queue.jobs[0].FileName)
	require.NoError(t, err)
	assert.Equal(t, "the lighthouse was built in 1872", string(content))
}

func TestUpload_MultipleFiles(t *testing.T) {
	f := newServerFixture(t)

	body, contentType := multipartBody(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
	})
	rec := f.do(t, http.MethodPost, "/upload", body, contentType)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.queue.jobs, 2)
}

func TestUpload_NotMultipart(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/upload", strings.NewReader("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_NoFilePart(t *testing.T) {
	f := newServerFixture(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "not a file"))
	require.NoError(t, writer.Close())

	rec := f.do(t, http.MethodPost, "/upload", &buf, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.jobs)
}

func TestUpload_EmptyFile(t *testing.T) {
	f := newServerFixture(t)

	body, contentType := multipartBody(t, map[string]string{"empty.txt": ""})
	rec := f.do(t, http.MethodPost, "/upload", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.jobs)
}

func TestAsk(t *testing.T) {
	f := newServerFixture(t)
	f.chatter.ChatFunc = func(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
		return "The keeper lived alone.", nil
	}

	rec := f.do(t, http.MethodGet, "/ask?question=who+kept+the+lighthouse", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp wireAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The keeper lived alone.", resp.Answer)
	assert.Equal(t, []string{}, resp.DataPoints)

	// Single-shot answers carry an empty thoughts string, not null
	require.NotNil(t, resp.Thoughts)
	assert.Equal(t, "", *resp.Thoughts)
}

func TestAsk_PostBody(t *testing.T) {
	f := newServerFixture(t)
	f.chatter.ChatFunc = func(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
		return "an answer", nil
	}

	body := strings.NewReader(`{"question": "who kept the lighthouse"}`)
	rec := f.do(t, http.MethodPost, "/ask", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp wireAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "an answer", resp.Answer)
}

func TestAsk_MissingQuestion(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/ask", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCreate(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPut, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assistant-1", resp["assistantId"])
}

func TestChatPost(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPut, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := strings.NewReader(`{"prompt": "who kept the lighthouse?"}`)
	rec = f.do(t, http.MethodPost, "/chat/assistant-1", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	// Acknowledgement echoes the assistant id; thoughts is null here
	var resp wireAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assistant-1", resp.Answer)
	assert.Equal(t, []string{}, resp.DataPoints)
	assert.Nil(t, resp.Thoughts)
}

func TestChatPost_UnknownConversation(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/chat/absent", strings.NewReader("hello"), "text/plain")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatPost_EmptyBody(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPut, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/chat/assistant-1", strings.NewReader("  "), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatState(t *testing.T) {
	f := newServerFixture(t)
	f.chatter.ChatFunc = func(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
		return "The keeper lived alone.", nil
	}

	rec := f.do(t, http.MethodPut, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Nothing posted yet
	rec = f.do(t, http.MethodGet, "/chat/assistant-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/chat/assistant-1", strings.NewReader("who kept the lighthouse?"), "text/plain")
	require.Equal(t, http.StatusOK, rec.Code)

	// Poll until the asynchronous reply lands
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/chat/assistant-1", nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		var resp wireAnswer
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Answer == "The keeper lived alone."
	}, 5*time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodGet, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp wireAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Thoughts)
}

func TestChatState_InvalidTimestamp(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/chat/assistant-1?timestampUTC=not-a-time", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatState_TimestampBound(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPut, "/chat/assistant-1", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/chat/assistant-1", strings.NewReader("hello"), "text/plain")
	require.Equal(t, http.StatusOK, rec.Code)

	// A bound before any message means nothing to report yet
	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	rec = f.do(t, http.MethodGet, "/chat/assistant-1?timestampUTC="+past, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Equal(t, ErrIngesterRequired, err)
}
