package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu     sync.Mutex
	resets []string
	err    error
}

func (f *fakeChat) Chat(_ context.Context, sessionID, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "echo " + message, nil
}

func (f *fakeChat) Stream(_ context.Context, sessionID, message string, onChunk func(string) error) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, part := range []string{"echo ", message} {
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	return "echo " + message, nil
}

func (f *fakeChat) Reset(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sessionID)
	return nil
}

type fakeKB struct {
	mu      sync.Mutex
	added   map[string]string
	deleted []string
	cleared bool
}

func (f *fakeKB) AddFile(_ context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.added == nil {
		f.added = make(map[string]string)
	}
	f.added[path] = string(data)
	return 1, nil
}

func (f *fakeKB) DeleteSource(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return 1, nil
}

func (f *fakeKB) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	return nil
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	s := New(&fakeChat{}, &fakeKB{}, t.TempDir(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSE Broker Agent")
}

func TestChatEndpoint(t *testing.T) {
	s := New(&fakeChat{}, nil, t.TempDir(), nil)

	rec := postJSON(t, s.Handler(), "/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "echo hi", resp.Response)
	assert.NotEmpty(t, resp.SessionID)

	rec = postJSON(t, s.Handler(), "/chat", map[string]string{"message": "again", "session_id": resp.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	var second chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, resp.SessionID, second.SessionID)

	rec = postJSON(t, s.Handler(), "/chat", map[string]string{"message": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpointError(t *testing.T) {
	s := New(&fakeChat{err: errors.New("boom")}, nil, t.TempDir(), nil)
	rec := postJSON(t, s.Handler(), "/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error: boom")
}

func TestResetEndpoint(t *testing.T) {
	chat := &fakeChat{}
	s := New(chat, nil, t.TempDir(), nil)
	rec := postJSON(t, s.Handler(), "/reset", map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cleared"}`, rec.Body.String())
	assert.Equal(t, []string{"s1"}, chat.resets)
}

func upload(t *testing.T, h http.Handler, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndDelete(t *testing.T) {
	kb := &fakeKB{}
	dir := t.TempDir()
	s := New(&fakeChat{}, kb, dir, nil)

	rec := upload(t, s.Handler(), "notes.txt", "dividends up")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Successfully processed notes.txt")
	require.Len(t, kb.added, 1)
	for path, content := range kb.added {
		assert.Equal(t, "notes.txt", path[len(dir)+1:])
		assert.Equal(t, "dividends up", content)
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "upload should be removed after indexing")
	}

	rec = upload(t, s.Handler(), "sheet.xlsx", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported file type")

	rec = postJSON(t, s.Handler(), "/delete_file", map[string]string{"filename": "notes.txt"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"notes.txt"}, kb.deleted)

	rec = postJSON(t, s.Handler(), "/delete_file", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketStreams(t *testing.T) {
	s := New(&fakeChat{}, nil, t.TempDir(), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "JKH", SessionID: "s1"}))

	var events []wsEvent
	for {
		var ev wsEvent
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == "done" || ev.Type == "error" {
			break
		}
	}
	require.Len(t, events, 3)
	assert.Equal(t, "chunk", events[0].Type)
	assert.Equal(t, "JKH", events[1].Content)
	assert.Equal(t, "done", events[2].Type)
	assert.Equal(t, "s1", events[2].SessionID)
	assert.Equal(t, "echo JKH", events[2].Response)
}

func TestShutdownClearsKnowledgeBase(t *testing.T) {
	kb := &fakeKB{}
	s := New(&fakeChat{}, kb, t.TempDir(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	assert.True(t, kb.cleared)
}
