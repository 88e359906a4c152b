// Package server provides the HTTP API and service layer for the taskman service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fentz26/taskman/internal/audit"
	"github.com/fentz26/taskman/internal/models"
	"github.com/fentz26/taskman/internal/storage"
)

// Service provides the task business logic.
type Service struct {
	store *storage.Store
	audit *audit.Recorder
	log   *slog.Logger
}

// NewService creates a new task service.
func NewService(s *storage.Store, rec *audit.Recorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: s,
		audit: rec,
		log:   log,
	}
}

// CreateTask creates a new task.
func (s *Service) CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		s.record(ctx, "task.create", req, audit.OutcomeRejected, 0, ErrEmptyTitle.Error())
		return models.Task{}, ErrEmptyTitle
	}

	task, err := s.store.CreateTask(ctx, req.Title, req.Description)
	if err != nil {
		s.record(ctx, "task.create", req, audit.OutcomeError, 0, err.Error())
		return models.Task{}, err
	}

	s.record(ctx, "task.create", req, audit.OutcomeSuccess, task.ID, "")
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id int64) (models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Task{}, ErrTaskNotFound
	}
	return task, err
}

// ListTasks returns a page of tasks in insertion order.
func (s *Service) ListTasks(ctx context.Context, skip, limit int) ([]models.Task, error) {
	return s.store.ListTasks(ctx, skip, limit)
}

// UpdateTask applies a partial update.
func (s *Service) UpdateTask(ctx context.Context, id int64, req models.UpdateTaskRequest) (models.Task, error) {
	if req.Status != nil && !req.Status.Valid() {
		s.record(ctx, "task.update", req, audit.OutcomeRejected, id, ErrInvalidStatus.Error())
		return models.Task{}, ErrInvalidStatus
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		s.record(ctx, "task.update", req, audit.OutcomeRejected, id, ErrEmptyTitle.Error())
		return models.Task{}, ErrEmptyTitle
	}

	task, err := s.store.UpdateTask(ctx, id, req)
	if errors.Is(err, storage.ErrNotFound) {
		s.record(ctx, "task.update", req, audit.OutcomeNotFound, id, "")
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		s.record(ctx, "task.update", req, audit.OutcomeError, id, err.Error())
		return models.Task{}, err
	}

	s.record(ctx, "task.update", req, audit.OutcomeSuccess, id, "")
	return task, nil
}

// DeleteTask deletes a task and returns it as it was before deletion.
func (s *Service) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	inputs := map[string]int64{"id": id}
	task, err := s.store.DeleteTask(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.record(ctx, "task.delete", inputs, audit.OutcomeNotFound, id, "")
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		s.record(ctx, "task.delete", inputs, audit.OutcomeError, id, err.Error())
		return models.Task{}, err
	}

	s.record(ctx, "task.delete", inputs, audit.OutcomeSuccess, id, "")
	return task, nil
}

// Ping checks the backing database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// record writes an audit entry. A failed audit write does not fail the request.
func (s *Service) record(ctx context.Context, action string, inputs interface{}, outcome string, taskID int64, details string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, action, inputs, outcome, taskID, details); err != nil {
		s.log.Warn("audit write failed", "action", action, "err", err)
	}
}
