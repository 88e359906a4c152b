package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fentz26/taskman/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tasks/", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":1,"title":"a","description":null,"status":"todo","created_at":"2024-01-01T00:00:00Z"},
			{"id":2,"title":"b","description":"x","status":"done","created_at":"2024-01-02T00:00:00Z"}
		]`)
	}))
	defer srv.Close()

	tasks, err := NewClient(srv.URL, 0).ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, models.Task{ID: 1, Title: "a", Status: models.TaskStatusTodo, CreatedAt: "2024-01-01T00:00:00Z"}, tasks[0])
	assert.Equal(t, "x", tasks[1].Description)
}

func TestCreateTaskSendsOnlyTitleAndDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"title": "Buy milk", "description": "2%"}, body)

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":3,"title":"Buy milk","description":"2%","status":"todo","created_at":"2024-01-01T00:00:00Z"}`)
	}))
	defer srv.Close()

	task, err := NewClient(srv.URL+"/", 0).CreateTask(context.Background(), models.CreateTaskRequest{Title: "Buy milk", Description: "2%"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), task.ID)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
}

func TestUpdateTaskSendsOnlyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tasks/7", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"status": "done"}, body)

		io.WriteString(w, `{"id":7,"title":"X","description":"Y","status":"done","created_at":"T"}`)
	}))
	defer srv.Close()

	status := models.TaskStatusDone
	task, err := NewClient(srv.URL, 0).UpdateTask(context.Background(), 7, models.UpdateTaskRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.Task{ID: 7, Title: "X", Description: "Y", Status: models.TaskStatusDone, CreatedAt: "T"}, task)
}

func TestDeleteTaskIgnoresBody(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"no content", http.StatusNoContent, ""},
		{"deleted record", http.StatusOK, `{"id":1,"title":"a"}`},
		{"non json ack", http.StatusOK, "ok"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/tasks/1", r.URL.Path)
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			require.NoError(t, NewClient(srv.URL, 0).DeleteTask(context.Background(), 1))
		})
	}
}

func TestNonSuccessStatusIsRemoteCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Task not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, 0).DeleteTask(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteCall))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/tasks/9", apiErr.Path)
	assert.Contains(t, apiErr.Body, "Task not found")
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestMalformedBodyIsRemoteCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).ListTasks(context.Background())
	require.ErrorIs(t, err, ErrRemoteCall)
	assert.Contains(t, err.Error(), "decode response")
}

func TestUnreachableServerIsRemoteCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).ListTasks(context.Background())
	require.ErrorIs(t, err, ErrRemoteCall)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"ok":false,"db":"error: closed","version":"dev","time":"now"}`)
	}))
	defer srv.Close()

	health, err := NewClient(srv.URL, 0).CheckHealth(context.Background())
	require.ErrorIs(t, err, ErrRemoteCall)
	require.NotNil(t, health)
	assert.False(t, health.OK)
	assert.Equal(t, "error: closed", health.DB)
}
