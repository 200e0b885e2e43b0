// Package task provides fire-and-forget background task scheduling.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a run id is unknown.
	ErrNotFound = errors.New("task run not found")

	// ErrShuttingDown is returned when the manager's context is done.
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// Run is one scheduled execution of a task function.
type Run struct {
	ID   string
	Name string

	done chan struct{}

	mu  sync.Mutex
	err error
}

// Err returns the run's error. It is only meaningful after the run finished.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done returns a channel closed when the run finishes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Manager runs named task functions in the background. Callers get a run id
// back immediately and never block on completion; failures and panics are
// logged and kept on the run record.
type Manager struct {
	m   sync.Map
	wg  sync.WaitGroup
	ctx context.Context
}

// NewManager returns a new task manager. Runs inherit ctx; canceling it
// cancels every in-flight run and rejects new ones.
func NewManager(ctx context.Context) *Manager {
	return &Manager{
		m:   sync.Map{},
		ctx: ctx,
	}
}

// Schedule starts fn in the background and returns its run id.
func (m *Manager) Schedule(name string, fn func(context.Context) error) (string, error) {
	if err := m.ctx.Err(); err != nil {
		return "", ErrShuttingDown
	}

	id := uuid.New().String()
	run := &Run{
		ID:   id,
		Name: name,
		done: make(chan struct{}),
	}
	m.m.Store(id, run)

	logger := log.FromContext(m.ctx).WithPrefix("task")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(run.done)

		err := m.invoke(fn)
		run.mu.Lock()
		run.err = err
		run.mu.Unlock()

		if err != nil {
			logger.Error("task failed", "name", name, "run", id, "err", err)
			return
		}
		logger.Debug("task finished", "name", name, "run", id)
	}()
	return id, nil
}

// invoke calls fn with the manager context, converting a panic into an
// error so one bad task never takes the process down.
func (m *Manager) invoke(fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(m.ctx)
}

// Shutdown blocks until every in-flight run has finished, or until ctx
// expires. Callers cancel the manager's own context first so runs that
// respect it wind down promptly.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-done:
		return nil
	}
}

// Get returns the run for an id.
func (m *Manager) Get(id string) (*Run, error) {
	v, ok := m.m.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Run), nil
}

// Wait blocks until the run finishes and returns its error. Used by tests
// and the CLI; the web handlers never call it.
func (m *Manager) Wait(id string) error {
	run, err := m.Get(id)
	if err != nil {
		return err
	}
	select {
	case <-m.ctx.Done():
		return m.ctx.Err() //nolint:wrapcheck
	case <-run.done:
		return run.Err()
	}
}
