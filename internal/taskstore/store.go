// Package taskstore keeps a local view of the remote task collection in sync
// with the remote service.
//
// Every mutation goes through the remote service first. Local state only
// changes once the service has confirmed the change, and each operation
// merges its own response into the collection as it is at resolution time.
package taskstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fentz26/taskman/internal/models"
)

// Input contract errors. Neither reaches the remote service.
var (
	ErrEmptyTitle    = errors.New("task title must not be empty")
	ErrInvalidStatus = errors.New("invalid task status")
)

// Remote is the task service the store synchronizes with.
type Remote interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, req models.UpdateTaskRequest) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report failed remote calls.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store owns the local task collection and the loading flag.
//
// Operations may run concurrently. The remote call is made without holding
// the lock; the result is applied through apply, which always sees the
// latest collection.
type Store struct {
	remote Remote
	log    *slog.Logger

	mu      sync.RWMutex
	tasks   []models.Task
	loading bool
	closed  bool
}

// New creates a Store in the loading state with an empty collection.
func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote:  remote,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tasks:   []models.Task{},
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks returns a copy of the current collection.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Len returns the number of tasks in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Get returns the task with the given id.
func (s *Store) Get(id int64) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Loading reports whether the initial load is still outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Close tears the store down. Responses that arrive afterwards are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Load replaces the collection with the remote one. The loading flag is
// cleared when Load returns, whether or not the call succeeded.
func (s *Store) Load(ctx context.Context) error {
	defer s.finishLoading()

	tasks, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.log.Error("load tasks", "err", err)
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	s.apply("load", func([]models.Task) []models.Task {
		return tasks
	})
	return nil
}

// Create asks the service to create a task and appends the result.
func (s *Store) Create(ctx context.Context, title, description string) (models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return models.Task{}, ErrEmptyTitle
	}

	task, err := s.remote.CreateTask(ctx, models.CreateTaskRequest{
		Title:       title,
		Description: description,
	})
	if err != nil {
		s.log.Error("create task", "title", title, "err", err)
		return models.Task{}, err
	}
	s.apply("create", func(current []models.Task) []models.Task {
		// A refresh that resolved first may already hold this id.
		for i := range current {
			if current[i].ID == task.ID {
				current[i] = task
				return current
			}
		}
		return append(current, task)
	})
	return task, nil
}

// SetStatus asks the service to change a task's status and replaces the local
// task with the service's copy. An id that is not held locally leaves the
// collection unchanged.
func (s *Store) SetStatus(ctx context.Context, id int64, status models.TaskStatus) (models.Task, error) {
	if !status.Valid() {
		return models.Task{}, ErrInvalidStatus
	}

	task, err := s.remote.UpdateTask(ctx, id, models.UpdateTaskRequest{Status: &status})
	if err != nil {
		s.log.Error("update task status", "id", id, "status", status, "err", err)
		return models.Task{}, err
	}
	s.apply("set_status", func(current []models.Task) []models.Task {
		for i := range current {
			if current[i].ID == id {
				current[i] = task
			}
		}
		return current
	})
	return task, nil
}

// Remove asks the service to delete a task and drops it locally.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.remote.DeleteTask(ctx, id); err != nil {
		s.log.Error("delete task", "id", id, "err", err)
		return err
	}
	s.apply("remove", func(current []models.Task) []models.Task {
		kept := current[:0]
		for _, t := range current {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		return kept
	})
	return nil
}

// apply merges a confirmed result into the current collection. fn receives a
// private copy so callers holding an earlier Tasks() slice are unaffected.
func (s *Store) apply(op string, fn func(current []models.Task) []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Debug("dropping response after close", "op", op)
		return
	}
	current := make([]models.Task, len(s.tasks))
	copy(current, s.tasks)
	s.tasks = fn(current)
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}
