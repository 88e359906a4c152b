package taskstore

import (
	"context"
	"errors"
	"sync"

	"github.com/fentz26/taskman/internal/models"
)

var errRemote = errors.New("remote call failed")

// fakeRemote is an in-memory Remote with canned responses and error injection.
type fakeRemote struct {
	mu sync.Mutex

	listResp   []models.Task
	createResp models.Task
	updateResp models.Task

	// createFn, when set, builds the create response under the fake's lock.
	createFn func(models.CreateTaskRequest) models.Task

	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error

	// gate, when set, blocks a call until a value is received for that op.
	gate map[string]chan struct{}

	listCalls   int
	createCalls []models.CreateTaskRequest
	updateCalls []updateCall
	deleteCalls []int64
}

type updateCall struct {
	id  int64
	req models.UpdateTaskRequest
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{gate: make(map[string]chan struct{})}
}

func (f *fakeRemote) wait(ctx context.Context, op string) {
	f.mu.Lock()
	ch := f.gate[op]
	f.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (f *fakeRemote) ListTasks(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	f.wait(ctx, "list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]models.Task, len(f.listResp))
	copy(out, f.listResp)
	return out, nil
}

func (f *fakeRemote) CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, req)
	f.mu.Unlock()
	f.wait(ctx, "create")
	if f.CreateErr != nil {
		return models.Task{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(req), nil
	}
	return f.createResp, nil
}

func (f *fakeRemote) UpdateTask(ctx context.Context, id int64, req models.UpdateTaskRequest) (models.Task, error) {
	f.mu.Lock()
	f.updateCalls = append(f.updateCalls, updateCall{id: id, req: req})
	f.mu.Unlock()
	f.wait(ctx, "update")
	if f.UpdateErr != nil {
		return models.Task{}, f.UpdateErr
	}
	return f.updateResp, nil
}

func (f *fakeRemote) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, id)
	f.mu.Unlock()
	f.wait(ctx, "delete")
	return f.DeleteErr
}
