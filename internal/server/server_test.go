package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fentz26/taskman/internal/api"
	"github.com/fentz26/taskman/internal/audit"
	"github.com/fentz26/taskman/internal/models"
	"github.com/fentz26/taskman/internal/storage"
	"github.com/fentz26/taskman/internal/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(st, audit.NewRecorder(st), logger)
	return NewServer(service, "127.0.0.1:0",
		WithLogger(logger),
		WithCORSOrigins("http://localhost:5173"),
	), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&task))
	return task
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.True(t, health.OK)
	assert.Equal(t, "ok", health.DB)
	assert.NotEmpty(t, health.Version)
	assert.NotEmpty(t, health.Time)
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, st := newTestServer(t)
	st.Close()

	w := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.False(t, health.OK)
	assert.NotEqual(t, "ok", health.DB)
}

func TestRoot(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "message")

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/nope", "").Code)
}

func TestTaskLifecycle(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks/", `{"title":"Buy milk","description":"2%"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeTask(t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.TaskStatusTodo, created.Status)
	assert.NotEmpty(t, created.CreatedAt)

	w = do(t, h, http.MethodGet, "/tasks/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, []models.Task{created}, list)

	path := "/tasks/" + jsonID(created.ID)
	w = do(t, h, http.MethodPut, path, `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeTask(t, w)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)
	assert.Equal(t, "2%", updated.Description)

	w = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, updated, decodeTask(t, w))

	w = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, updated, decodeTask(t, w))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, "").Code)

	entries, err := st.ListAudit(context.Background(), created.ID)
	require.NoError(t, err)
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"task.create", "task.update", "task.delete"}, actions)
}

func TestCreateWithoutDescription(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{`{"title":"a"}`, `{"title":"b","description":null}`} {
		w := do(t, s.Handler(), http.MethodPost, "/tasks", body)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, decodeTask(t, w).Description)
	}
}

func TestValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	created := decodeTask(t, do(t, h, http.MethodPost, "/tasks/", `{"title":"x"}`))
	path := "/tasks/" + jsonID(created.ID)

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"blank title", http.MethodPost, "/tasks/", `{"title":"  "}`, http.StatusUnprocessableEntity},
		{"bad json", http.MethodPost, "/tasks/", `{`, http.StatusUnprocessableEntity},
		{"bad status", http.MethodPut, path, `{"status":"archived"}`, http.StatusUnprocessableEntity},
		{"blank title update", http.MethodPut, path, `{"title":""}`, http.StatusUnprocessableEntity},
		{"non integer id", http.MethodGet, "/tasks/abc", "", http.StatusUnprocessableEntity},
		{"missing update", http.MethodPut, "/tasks/999", `{"status":"done"}`, http.StatusNotFound},
		{"missing delete", http.MethodDelete, "/tasks/999", "", http.StatusNotFound},
		{"nested path", http.MethodGet, path + "/logs", "", http.StatusNotFound},
		{"bad method", http.MethodPatch, path, "", http.StatusMethodNotAllowed},
		{"bad skip", http.MethodGet, "/tasks/?skip=-1", "", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestListPaging(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	for _, title := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/tasks/", `{"title":"`+title+`"}`).Code)
	}

	w := do(t, h, http.MethodGet, "/tasks/?skip=1&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Task
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Title)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/tasks/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	s.SetCORSOrigins("http://evil.example/")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://evil.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEchoed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = do(t, s.Handler(), http.MethodGet, "/tasks/", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

// The client-side store, driven through the real HTTP client, stays in step
// with the service.
func TestTaskStoreAgainstServer(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	ctx := context.Background()

	seed := api.NewClient(ts.URL, 0)
	first, err := seed.CreateTask(ctx, models.CreateTaskRequest{Title: "seeded"})
	require.NoError(t, err)

	store := taskstore.New(api.NewClient(ts.URL, 0))
	require.True(t, store.Loading())
	require.NoError(t, store.Load(ctx))
	require.False(t, store.Loading())
	require.Equal(t, []models.Task{first}, store.Tasks())

	second, err := store.Create(ctx, "Buy milk", "2%")
	require.NoError(t, err)
	assert.Equal(t, []models.Task{first, second}, store.Tasks())

	done, err := store.SetStatus(ctx, first.ID, models.TaskStatusDone)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	assert.Equal(t, []models.Task{done, second}, store.Tasks())

	require.NoError(t, store.Remove(ctx, first.ID))
	assert.Equal(t, []models.Task{second}, store.Tasks())

	// A failed remote call leaves local state alone.
	err = store.Remove(ctx, first.ID)
	require.ErrorIs(t, err, api.ErrRemoteCall)
	_, err = store.SetStatus(ctx, 12345, models.TaskStatusDone)
	require.ErrorIs(t, err, api.ErrRemoteCall)
	assert.Equal(t, []models.Task{second}, store.Tasks())

	remote, err := seed.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote, store.Tasks())
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
