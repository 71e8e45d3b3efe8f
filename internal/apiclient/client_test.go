package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docsync/internal/document/model"
	"docsync/internal/notifier"
	"docsync/internal/search"
	"docsync/internal/workspace"
	"docsync/pkg/apperror"
	"docsync/socket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ workspace.Repository   = (*Client)(nil)
	_ workspace.HistoryStore = (*Client)(nil)
	_ search.Searcher        = (*Client)(nil)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestRequestsCarryAuthAndClientID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "client-a", r.Header.Get("X-Client-ID"))
		switch r.Method + " " + r.URL.Path {
		case "DELETE /api/folders/f 1":
			writeJSON(w, http.StatusOK, model.DeleteFolderResponse{Status: "deleted", DeletedIDs: []string{"d1", "d2"}})
		case "POST /api/documents":
			var req model.CreateDocumentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSON(w, http.StatusCreated, model.Document{ID: "d1", Title: req.Title, FolderID: req.FolderID})
		case "GET /api/search":
			writeJSON(w, http.StatusOK, []model.SearchResult{{ID: "d1", Title: r.URL.Query().Get("query")}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(server.URL+"/api/", "tok", "client-a", nil)
	ctx := context.Background()

	deleted, err := c.DeleteFolder(ctx, "f 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, deleted)

	doc, err := c.CreateDocument(ctx, model.CreateDocumentRequest{Title: "Q1", Content: "x", FolderID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)

	results, err := c.Search(ctx, "a&b")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a&b", results[0].Title)
}

func TestStatusesMapToErrorKinds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/documents/missing":
			writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "document missing: not found"})
		case "/api/folders":
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "name: folder name is required"})
		default:
			writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to get history"})
		}
	}))
	defer server.Close()
	c := New(server.URL+"/api", "", "", nil)
	c.baseDelay = time.Millisecond
	ctx := context.Background()

	_, err := c.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, "not_found", apperror.Kind(err))

	_, err = c.CreateFolder(ctx, "")
	var vErr *apperror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
	assert.Equal(t, "folder name is required", vErr.Message)

	_, err = c.GetHistory(ctx)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.True(t, apperror.Retryable(err))
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Folder{{ID: "f1"}})
	}))
	defer server.Close()
	c := New(server.URL+"/api", "", "", nil)
	c.baseDelay = time.Millisecond

	folders, err := c.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Len(t, folders, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: "down"})
	}))
	defer server.Close()
	c := New(server.URL+"/api", "", "", nil)

	_, err := c.AddHistoryEntry(context.Background(), "d1", "Q1")
	assert.ErrorIs(t, err, apperror.ErrNetwork)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := New(addr+"/api", "", "", nil)
	c.maxRetries = 0
	_, err := c.ListFolders(context.Background())
	assert.ErrorIs(t, err, apperror.ErrNetwork)
}

func TestEventsURL(t *testing.T) {
	c := New("https://docs.example.com/api", "tok", "client-a", nil)
	u, err := c.EventsURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://docs.example.com/ws?clientId=client-a&token=tok", u)
}

func TestListenPublishesRemoteDeletions(t *testing.T) {
	hub := socket.NewHub()
	go hub.Run()
	defer hub.Stop()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, "user")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	n := notifier.New()
	got := make(chan []string, 1)
	n.Subscribe(func(ids notifier.IDSet) { got <- ids.Sorted() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(server.URL+"/api", "", "client-b", nil).Listen(ctx, n) }()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastDeletion("client-a", []string{"d2", "d1"})
	select {
	case ids := <-got:
		assert.Equal(t, []string{"d1", "d2"}, ids)
	case <-time.After(time.Second):
		t.Fatal("deletion was not published")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

func TestCloseOnDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &countingCloser{}
	closeOnDone(ctx, c)
	cancel()
	require.Eventually(t, func() bool { return c.n.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Once stopped the watcher is gone and a later cancel closes nothing.
	ctx, cancel = context.WithCancel(context.Background())
	stopped := &countingCloser{}
	stop := closeOnDone(ctx, stopped)
	stop()
	cancel()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), stopped.n.Load())
}

var testUpgrader = websocket.Upgrader{}

func TestListenReturnsWhenServerCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(server.Close)

	errCh := make(chan error, 1)
	go func() { errCh <- New(server.URL+"/api", "", "client-a", nil).Listen(context.Background(), notifier.New()) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, apperror.ErrNetwork)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after the connection dropped")
	}
}
